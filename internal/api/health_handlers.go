package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes. Both paths are
// exempt from the admission gate so orchestrators can always reach them.
type HealthHandler struct {
	checkers map[string]Checker
}

// NewHealthHandler creates a HealthHandler over named dependency checkers.
func NewHealthHandler(checkers map[string]Checker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

// HandleHealth serves GET /health: process liveness, no dependencies.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady serves GET /ready: verifies every registered dependency
// within a bounded deadline. Any failure yields 503 with per-dependency
// detail.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	overall := "ok"
	status := http.StatusOK
	results := make(map[string]string, len(h.checkers))
	for name, c := range h.checkers {
		if err := c.HealthCheck(ctx); err != nil {
			slog.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
			results[name] = "unavailable"
			overall = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	WriteJSON(w, r, status, map[string]any{
		"status":       overall,
		"dependencies": results,
	})
}
