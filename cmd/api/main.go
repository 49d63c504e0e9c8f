// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/api"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/auth"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/config"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/gate"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/health"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/honeypot"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/identity"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/middleware"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/ratelimit"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/store"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/tracing"
)

const serviceName = "neuroklast-api"

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Neuroklast API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: 1.0,
		InsecureMode: !cfg.IsProduction(),
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Shared store. Development runs without REDIS_URL fall back to the
	// in-memory store so the full surface works on a laptop.
	var (
		st       store.Store
		checkers map[string]api.Checker
	)
	if cfg.RedisURL != "" {
		client, err := store.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis configuration", "error", err)
			os.Exit(1)
		}
		st = store.NewRedisStore(client)
		checkers = map[string]api.Checker{
			"redis": health.NewRedisChecker(client),
		}
	} else {
		logger.Warn("REDIS_URL not set, using in-memory store; state is lost on restart")
		st = store.NewMemoryStore()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Domain components
	hasher := identity.NewHasher(cfg.IdentitySalt)
	g := gate.New(st, hasher, metrics,
		int64(cfg.CircuitThreshold),
		time.Duration(cfg.CircuitCooldownSeconds)*time.Second,
		[]string{"/health", "/ready", "/metrics"},
	)
	trap := honeypot.New(st, hasher, g, metrics, honeypot.Config{
		DecoyPaths: cfg.HoneypotDecoyPaths,
		BlockTTL:   time.Duration(cfg.HoneypotBlockTTLSeconds) * time.Second,
		AlertCap:   int64(cfg.HoneypotAlertCap),
		BaseURL:    cfg.SiteBaseURL,
	})
	limiter := ratelimit.New(st, metrics)
	authService := auth.NewService(st, cfg.SetupToken, 0)
	authHandler := api.NewAuthHandler(authService, hasher, metrics, cfg.IsProduction())

	router := api.NewRouter(api.RouterDeps{
		Auth:       authHandler,
		Admin:      api.NewAdminHandler(trap, g),
		Newsletter: api.NewNewsletterHandler(st),
		KV:         api.NewKVHandler(st),
		Health:     api.NewHealthHandler(checkers),
		Trap:       trap,
		Limiter:    limiter,
		Hasher:     hasher,
		Limits: api.RouteLimits{
			Auth:       ratelimit.Config{MaxRequests: cfg.RateLimitAuth, Window: time.Minute},
			Newsletter: ratelimit.Config{MaxRequests: cfg.RateLimitNewsletter, Window: time.Minute},
			Content:    ratelimit.Config{MaxRequests: cfg.RateLimitContent, Window: time.Minute},
		},
	})

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Middleware chain, outermost first: request ID -> logging -> tracing
	// -> HTTP metrics -> CORS -> admission gate. The gate sits innermost so
	// rejected requests are still identified, logged and counted.
	var handler http.Handler = mux
	handler = g.Middleware(handler)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins})(handler)
	handler = middleware.HTTPMetrics(metrics, trap.IsDecoy)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracer provider", "error", err)
	}

	logger.Info("server stopped")
}
