// Package ratelimit enforces per-route, per-identity request limits using
// fixed time windows backed by the shared counter store.
package ratelimit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/identity"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/middleware"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/store"
)

// Config defines the limit for one route.
// Valid values:
//   - MaxRequests: must be > 0
//   - Window: must be at least one second
type Config struct {
	// MaxRequests is the maximum number of requests allowed per window.
	MaxRequests int
	// Window is the time window for the rate limit. Window indices are
	// computed at second granularity, so sub-second windows are invalid.
	Window time.Duration
}

// Validate checks that the Config has valid values.
func (c Config) Validate() error {
	if c.MaxRequests <= 0 {
		return fmt.Errorf("MaxRequests must be > 0 (got %d)", c.MaxRequests)
	}
	if c.Window < time.Second {
		return fmt.Errorf("Window must be at least 1s (got %s)", c.Window)
	}
	return nil
}

// Limiter counts requests per (route, identity, window) tuple.
//
// Fixed-window counting permits up to 2x MaxRequests across a window
// boundary. This is an accepted tradeoff for single-round-trip counting;
// the boundary behavior is pinned by tests and must not be changed to a
// sliding window without revisiting every configured limit.
type Limiter struct {
	store   store.Store
	metrics *middleware.Metrics
	now     func() time.Time
}

// New creates a Limiter. metrics may be nil.
func New(s store.Store, metrics *middleware.Metrics) *Limiter {
	return &Limiter{
		store:   s,
		metrics: metrics,
		now:     time.Now,
	}
}

// SetClock replaces the limiter's clock. Test helper.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Allow reports whether a request from identity on route is within the
// limit. The counter key embeds the window index, so counters reset
// implicitly when a new window begins and expire via TTL (2x window) soon
// after.
//
// If the store is unreachable the limiter fails open: throttling is a
// statistical mitigation and must not take the site down with it.
func (l *Limiter) Allow(ctx context.Context, route, hashedIdentity string, cfg Config) bool {
	// Clamp defends against unvalidated configs: a sub-second window
	// would otherwise divide by zero on the next line.
	windowSecs := int64(cfg.Window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}
	windowIndex := l.now().Unix() / windowSecs
	key := fmt.Sprintf("%s%s:%s:%d", store.KeyRateLimitPrefix, route, hashedIdentity, windowIndex)

	if l.metrics != nil {
		l.metrics.IncRateLimitRequests(route)
	}

	count, err := l.store.IncrWithTTL(ctx, key, 2*cfg.Window)
	if err != nil {
		if l.metrics != nil {
			l.metrics.IncRateLimitStoreErrors()
		}
		slog.WarnContext(ctx, "rate limit store unavailable, failing open", "route", route, "error", err)
		return true
	}

	allowed := count <= int64(cfg.MaxRequests)
	if !allowed && l.metrics != nil {
		l.metrics.IncRateLimitBlocked(route)
	}
	return allowed
}

// Middleware returns a per-route middleware that rejects over-limit
// requests with 429 and a JSON body before the protected handler runs, so
// the protected side effect never happens for rejected requests.
func (l *Limiter) Middleware(route string, cfg Config, hasher *identity.Hasher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := hasher.FromRequest(r)
			if !l.Allow(r.Context(), route, id, cfg) {
				ctx := middleware.SetErrorCode(r.Context(), "rate_limited")
				middleware.UpdateResponseContext(w, ctx)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				io.WriteString(w, `{"error":"rate_limited","message":"Too many requests, slow down"}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
