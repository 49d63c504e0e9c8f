package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/gate"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/honeypot"
)

// AdminHandler serves the authenticated admin surface: honeypot alerts and
// blocklist management. Session enforcement happens in the router via
// AuthHandler.RequireSession.
type AdminHandler struct {
	trap *honeypot.Trap
	gate *gate.Gate
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(trap *honeypot.Trap, g *gate.Gate) *AdminHandler {
	return &AdminHandler{trap: trap, gate: g}
}

// HandleAlerts serves GET /api/admin/alerts. An optional limit query
// parameter bounds the result; it defaults to the retention cap.
func (h *AdminHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			WriteError(w, r, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := h.trap.Alerts(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load honeypot alerts", "error", err)
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceError, "Service temporarily unavailable")
		return
	}

	WriteJSON(w, r, http.StatusOK, map[string]any{"alerts": alerts})
}

// HandleBlocklist serves /api/admin/blocklist/{identity}: PUT blocks the
// hashed identity, DELETE unblocks it, GET reports its state. The path
// segment is the already-hashed identity as it appears in alerts.
func (h *AdminHandler) HandleBlocklist(w http.ResponseWriter, r *http.Request) {
	hashedIdentity := strings.TrimPrefix(r.URL.Path, "/api/admin/blocklist/")
	if hashedIdentity == "" || strings.Contains(hashedIdentity, "/") {
		WriteError(w, r, http.StatusBadRequest, ErrCodeValidation, "A hashed identity is required in the path")
		return
	}

	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		blocked, err := h.gate.IsBlocked(ctx, hashedIdentity)
		if err != nil {
			slog.ErrorContext(ctx, "failed to check blocklist", "identity", hashedIdentity, "error", err)
			WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceError, "Service temporarily unavailable")
			return
		}
		WriteJSON(w, r, http.StatusOK, map[string]any{"identity": hashedIdentity, "blocked": blocked})

	case http.MethodPut:
		// Manual blocks are permanent until removed; TTLs are for the trap.
		if err := h.gate.Block(ctx, hashedIdentity, 0); err != nil {
			slog.ErrorContext(ctx, "failed to block identity", "identity", hashedIdentity, "error", err)
			WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceError, "Service temporarily unavailable")
			return
		}
		slog.InfoContext(ctx, "identity blocklisted by admin", "identity", hashedIdentity)
		WriteJSON(w, r, http.StatusOK, map[string]any{"identity": hashedIdentity, "blocked": true})

	case http.MethodDelete:
		if err := h.gate.Unblock(ctx, hashedIdentity); err != nil {
			slog.ErrorContext(ctx, "failed to unblock identity", "identity", hashedIdentity, "error", err)
			WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceError, "Service temporarily unavailable")
			return
		}
		slog.InfoContext(ctx, "identity removed from blocklist", "identity", hashedIdentity)
		WriteJSON(w, r, http.StatusOK, map[string]any{"identity": hashedIdentity, "blocked": false})

	default:
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}
