// Package gate implements the pre-request admission gate: a global circuit
// breaker over aggregate traffic plus a per-identity blocklist. It runs
// before route dispatch for every request to the site.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/identity"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/middleware"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/store"
)

// Global traffic is counted in fixed 10-second buckets; each bucket lives
// twice its width so a bucket straddling a check is still observable.
const (
	globalWindow    = 10 * time.Second
	globalWindowTTL = 20 * time.Second
)

// Defaults for the circuit breaker.
const (
	DefaultThreshold = 500
	DefaultCooldown  = 300 * time.Second
)

// Gate is the admission-control edge. Order of checks per request:
//
//  1. circuit open -> 429, empty body
//  2. identity blocklisted -> 403, empty body
//  3. global counter over threshold -> trip circuit, 429, empty body
//  4. pass through
//
// Every store failure fails open: availability of the site takes priority
// over the protection mechanism. The gate never panics and never blocks
// past the store's bounded timeouts.
type Gate struct {
	store     store.Store
	hasher    *identity.Hasher
	metrics   *middleware.Metrics
	threshold int64
	cooldown  time.Duration
	exempt    map[string]bool
	now       func() time.Time
}

// New creates a Gate. metrics may be nil. Paths in exempt bypass the gate
// entirely (health probes, metrics scrapes).
func New(s store.Store, hasher *identity.Hasher, metrics *middleware.Metrics, threshold int64, cooldown time.Duration, exempt []string) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	ex := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		ex[p] = true
	}
	return &Gate{
		store:     s,
		hasher:    hasher,
		metrics:   metrics,
		threshold: threshold,
		cooldown:  cooldown,
		exempt:    ex,
		now:       time.Now,
	}
}

// SetClock replaces the gate's clock. Test helper.
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

// Middleware wraps next with the admission checks. Rejections carry no
// body: attackers get a status code, not an explanation.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if g.metrics != nil {
			g.metrics.IncGateChecks()
		}

		tripped, err := g.store.Exists(ctx, store.KeyCircuit)
		if err != nil {
			g.failOpen(ctx, "circuit check", err)
		} else if tripped {
			g.reject(w, r, http.StatusTooManyRequests, middleware.BlockReasonCircuit)
			return
		}

		hashedIdentity := g.hasher.FromRequest(r)
		blocked, err := g.store.Exists(ctx, store.BlocklistKey(hashedIdentity))
		if err != nil {
			g.failOpen(ctx, "blocklist check", err)
		} else if blocked {
			g.reject(w, r, http.StatusForbidden, middleware.BlockReasonBlocklist)
			return
		}

		bucket := g.now().Unix() / int64(globalWindow/time.Second)
		key := fmt.Sprintf("%s%d", store.KeyGlobalWindow, bucket)
		count, err := g.store.IncrWithTTL(ctx, key, globalWindowTTL)
		if err != nil {
			g.failOpen(ctx, "global counter", err)
		} else if count > g.threshold {
			// First writer wins; concurrent trips converge on the same key
			// and value, so re-arming the TTL under a race is harmless.
			if err := g.store.Set(ctx, store.KeyCircuit, "1", g.cooldown); err != nil {
				g.failOpen(ctx, "circuit trip", err)
			} else {
				slog.WarnContext(ctx, "circuit breaker tripped",
					"count", count,
					"threshold", g.threshold,
					"cooldown", g.cooldown,
				)
			}
			g.reject(w, r, http.StatusTooManyRequests, middleware.BlockReasonThreshold)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Block adds a hashed identity to the blocklist. A ttl of 0 blocks until
// manually cleared.
func (g *Gate) Block(ctx context.Context, hashedIdentity string, ttl time.Duration) error {
	return g.store.Set(ctx, store.BlocklistKey(hashedIdentity), "1", ttl)
}

// Unblock removes a hashed identity from the blocklist.
func (g *Gate) Unblock(ctx context.Context, hashedIdentity string) error {
	return g.store.Delete(ctx, store.BlocklistKey(hashedIdentity))
}

// IsBlocked reports whether a hashed identity is currently blocklisted.
func (g *Gate) IsBlocked(ctx context.Context, hashedIdentity string) (bool, error) {
	return g.store.Exists(ctx, store.BlocklistKey(hashedIdentity))
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, status int, reason string) {
	if g.metrics != nil {
		g.metrics.IncGateBlocked(reason)
	}
	ctx := middleware.SetErrorCode(r.Context(), reason)
	middleware.UpdateResponseContext(w, ctx)
	w.WriteHeader(status)
}

func (g *Gate) failOpen(ctx context.Context, op string, err error) {
	if g.metrics != nil {
		g.metrics.IncGateStoreErrors()
	}
	slog.WarnContext(ctx, "gate store unavailable, failing open", "op", op, "error", err)
}
