package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/store"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/validate"
)

// maxContentBytes bounds a single content entry.
const maxContentBytes = 64 << 10

// KVHandler serves the small content key-value surface backing editable
// site fragments (bio text, show listings). Reads are public, writes
// require an admin session.
type KVHandler struct {
	store store.Store
}

// NewKVHandler creates a KVHandler.
func NewKVHandler(s store.Store) *KVHandler {
	return &KVHandler{store: s}
}

// HandleGet serves GET /api/kv/{key}.
func (h *KVHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key, err := validate.ContentKey(strings.TrimPrefix(r.URL.Path, "/api/kv/"))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeValidation, "Invalid content key")
		return
	}

	value, ok, err := h.store.Get(r.Context(), store.ContentKey(key))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load content", "key", key, "error", err)
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceError, "Service temporarily unavailable")
		return
	}
	if !ok {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "No content under that key")
		return
	}

	WriteJSON(w, r, http.StatusOK, map[string]string{"key": key, "value": value})
}

// HandlePut serves PUT /api/kv/{key}. The body is stored verbatim with no
// expiry; content entries live until overwritten.
func (h *KVHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	key, err := validate.ContentKey(strings.TrimPrefix(r.URL.Path, "/api/kv/"))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeValidation, "Invalid content key")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxContentBytes+1))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Failed to read request body")
		return
	}
	if len(body) > maxContentBytes {
		WriteError(w, r, http.StatusRequestEntityTooLarge, ErrCodeValidation, "Content too large")
		return
	}

	if err := h.store.Set(r.Context(), store.ContentKey(key), string(body), 0); err != nil {
		slog.ErrorContext(r.Context(), "failed to store content", "key", key, "error", err)
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceError, "Service temporarily unavailable")
		return
	}

	WriteJSON(w, r, http.StatusOK, map[string]string{"key": key})
}
