package api

import (
	"net/http"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/honeypot"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/identity"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/ratelimit"
)

// RouteLimits holds the per-route rate limit configurations. Auth gets the
// tightest budget; the public write endpoints sit in between.
type RouteLimits struct {
	Auth       ratelimit.Config
	Newsletter ratelimit.Config
	Content    ratelimit.Config
}

// RouterDeps collects everything the router wires together.
type RouterDeps struct {
	Auth       *AuthHandler
	Admin      *AdminHandler
	Newsletter *NewsletterHandler
	KV         *KVHandler
	Health     *HealthHandler
	Trap       *honeypot.Trap
	Limiter    *ratelimit.Limiter
	Hasher     *identity.Hasher
	Limits     RouteLimits
}

// NewRouter assembles the route table. The admission gate and the ambient
// middleware (request ID, logging, metrics, CORS, tracing) wrap the
// returned handler in main; per-route rate limits are applied here because
// they differ by route.
func NewRouter(d RouterDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", d.Health.HandleHealth)
	mux.HandleFunc("/ready", d.Health.HandleReady)

	mux.HandleFunc("/sitemap.xml", d.Trap.ServeSitemap)
	mux.HandleFunc("/robots.txt", d.Trap.ServeRobots)
	for _, p := range d.Trap.DecoyPaths() {
		mux.HandleFunc(p, d.Trap.ServeTrap)
	}

	authLimit := d.Limiter.Middleware("auth", d.Limits.Auth, d.Hasher)
	newsletterLimit := d.Limiter.Middleware("newsletter", d.Limits.Newsletter, d.Hasher)
	contentLimit := d.Limiter.Middleware("content", d.Limits.Content, d.Hasher)

	mux.Handle("/api/auth", authLimit(d.Auth))
	mux.Handle("/api/newsletter", newsletterLimit(http.HandlerFunc(d.Newsletter.HandleSubscribe)))

	mux.Handle("/api/admin/alerts", d.Auth.RequireSession(http.HandlerFunc(d.Admin.HandleAlerts)))
	mux.Handle("/api/admin/blocklist/", d.Auth.RequireSession(http.HandlerFunc(d.Admin.HandleBlocklist)))

	// Content reads are public and rate limited; writes need a session.
	mux.Handle("/api/kv/", contentLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			d.KV.HandleGet(w, r)
		case http.MethodPut:
			d.Auth.RequireSession(http.HandlerFunc(d.KV.HandlePut)).ServeHTTP(w, r)
		default:
			WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		}
	})))

	return mux
}
