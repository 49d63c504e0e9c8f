// Package api provides the HTTP handlers and response utilities for the
// public API and the admin auth endpoint.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure. Deliberately
	// generic: wrong password and wrong TOTP code are indistinguishable.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeAuthRequired indicates a missing or invalid session.
	ErrCodeAuthRequired = "auth_required"

	// ErrCodeTOTPRequired signals that the password was accepted but a
	// TOTP code must be supplied. The one intentional disclosure.
	ErrCodeTOTPRequired = "totp_required"

	// ErrCodeInvalidSetupToken indicates a missing or wrong setup token.
	ErrCodeInvalidSetupToken = "invalid_setup_token"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeServiceError indicates a dependency failure. Auth paths fail
	// closed with this code rather than guessing.
	ErrCodeServiceError = "service_error"
)

// errorResponse is the standard error body: {"error": "...", "message": "..."}.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response and records the
// error code for the logging middleware.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	middleware.UpdateResponseContext(w, ctx)

	writeJSON(w, ctx, status, errorResponse{Error: code, Message: message})
}

// writeJSON marshals v and writes it with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// WriteJSON writes a success response with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	writeJSON(w, r.Context(), status, v)
}
