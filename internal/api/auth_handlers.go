package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/auth"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/identity"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/middleware"
)

// SessionCookieName is the HTTP-only cookie carrying the opaque session
// token. The token never reaches page scripts or client-side storage.
const SessionCookieName = "admin_session"

// AuthHandler serves the admin auth endpoint: GET for status, POST for
// setup/login/totp/password operations, DELETE for logout.
type AuthHandler struct {
	svc     *auth.Service
	hasher  *identity.Hasher
	metrics *middleware.Metrics
	secure  bool // Secure cookie flag; true in production
}

// NewAuthHandler creates an AuthHandler. metrics may be nil.
func NewAuthHandler(svc *auth.Service, hasher *identity.Hasher, metrics *middleware.Metrics, production bool) *AuthHandler {
	return &AuthHandler{
		svc:     svc,
		hasher:  hasher,
		metrics: metrics,
		secure:  production,
	}
}

// authRequest is the POST body. The action field selects the operation;
// an empty action with a password is a login, an empty action with a
// newPassword is a password change.
type authRequest struct {
	Action      string `json:"action,omitempty"`
	Password    string `json:"password,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
	Code        string `json:"code,omitempty"`
	SetupToken  string `json:"setupToken,omitempty"`
}

// ServeHTTP dispatches on method.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleStatus(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodDelete:
		h.handleLogout(w, r)
	default:
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// fingerprint recomputes the session-binding fingerprint for the
// presenting request.
func (h *AuthHandler) fingerprint(r *http.Request) string {
	return h.hasher.Fingerprint(h.hasher.FromRequest(r), r.UserAgent())
}

// sessionToken extracts the opaque token from the session cookie.
func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context(), sessionToken(r), h.fingerprint(r))
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, status)
}

func (h *AuthHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	switch {
	case req.Action == "setup":
		h.handleSetup(w, r, req)
	case req.Action == "totp-setup":
		h.handleTOTPSetup(w, r)
	case req.Action == "totp-disable":
		h.handleTOTPDisable(w, r, req)
	case req.Action == "" && req.NewPassword != "":
		h.handlePasswordChange(w, r, req)
	case req.Action == "" && req.Password != "":
		h.handleLogin(w, r, req)
	default:
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Unrecognized auth operation")
	}
}

func (h *AuthHandler) handleSetup(w http.ResponseWriter, r *http.Request, req authRequest) {
	token, err := h.svc.Setup(r.Context(), req.Password, req.SetupToken, h.fingerprint(r))
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	h.setSessionCookie(w, token, auth.DefaultSessionTTL)
	WriteJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request, req authRequest) {
	token, err := h.svc.Login(r.Context(), req.Password, req.Code, h.fingerprint(r))
	if err != nil {
		if h.metrics != nil {
			if errors.Is(err, auth.ErrTOTPRequired) {
				h.metrics.IncAuthAttempts(middleware.AuthResultTOTPRequired)
			} else {
				h.metrics.IncAuthAttempts(middleware.AuthResultFailed)
			}
		}
		h.writeAuthError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncAuthAttempts(middleware.AuthResultSuccess)
	}
	h.setSessionCookie(w, token, auth.DefaultSessionTTL)
	WriteJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) handleTOTPSetup(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	enrollment, err := h.svc.EnrollTOTP(r.Context())
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	// The raw secret is disclosed exactly once, here.
	WriteJSON(w, r, http.StatusOK, enrollment)
}

func (h *AuthHandler) handleTOTPDisable(w http.ResponseWriter, r *http.Request, req authRequest) {
	if !h.requireSession(w, r) {
		return
	}

	if err := h.svc.DisableTOTP(r.Context(), req.Password, req.Code); err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) handlePasswordChange(w http.ResponseWriter, r *http.Request, req authRequest) {
	if !h.requireSession(w, r) {
		return
	}

	if err := h.svc.ChangePassword(r.Context(), req.NewPassword); err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), sessionToken(r)); err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// requireSession enforces an authenticated session with a matching
// fingerprint. Writes the error response itself and returns false when the
// caller should stop.
func (h *AuthHandler) requireSession(w http.ResponseWriter, r *http.Request) bool {
	ok, err := h.svc.Authenticate(r.Context(), sessionToken(r), h.fingerprint(r))
	if err != nil {
		h.writeAuthError(w, r, err)
		return false
	}
	if !ok {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeAuthRequired, "Authentication required")
		return false
	}
	return true
}

// RequireSession is middleware protecting non-auth admin routes with the
// same session + fingerprint check.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.requireSession(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeAuthError maps service errors to HTTP responses. Anything outside
// the known taxonomy is a dependency failure: auth fails closed with 503.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrTOTPRequired):
		WriteError(w, r, http.StatusUnauthorized, ErrCodeTOTPRequired, "A TOTP code is required to complete login")
	case errors.Is(err, auth.ErrAuthFailed):
		WriteError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication failed")
	case errors.Is(err, auth.ErrInvalidSetupToken):
		WriteError(w, r, http.StatusForbidden, ErrCodeInvalidSetupToken, "Invalid setup token")
	case errors.Is(err, auth.ErrWeakPassword):
		WriteError(w, r, http.StatusBadRequest, ErrCodeValidation, "Password must be at least 8 characters")
	case errors.Is(err, auth.ErrAlreadyConfigured),
		errors.Is(err, auth.ErrNeedsSetup),
		errors.Is(err, auth.ErrTOTPEnabled),
		errors.Is(err, auth.ErrTOTPNotEnabled):
		WriteError(w, r, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		slog.ErrorContext(r.Context(), "auth service error", "error", err)
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceError, "Service temporarily unavailable")
	}
}
