package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/store"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/validate"
)

// NewsletterHandler serves the public newsletter signup endpoint.
type NewsletterHandler struct {
	store store.Store
}

// NewNewsletterHandler creates a NewsletterHandler.
func NewNewsletterHandler(s store.Store) *NewsletterHandler {
	return &NewsletterHandler{store: s}
}

type newsletterRequest struct {
	Email string `json:"email"`
}

// HandleSubscribe serves POST /api/newsletter. Set semantics: subscribing
// twice is not an error and the response does not reveal whether the
// address was already present.
func (h *NewsletterHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req newsletterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	email, err := validate.Email(req.Email)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeValidation, "Invalid email address")
		return
	}

	if err := h.store.SetAdd(r.Context(), store.KeyNewsletterSubs, email); err != nil {
		slog.ErrorContext(r.Context(), "failed to store newsletter subscription", "error", err)
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceError, "Service temporarily unavailable")
		return
	}

	WriteJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}
