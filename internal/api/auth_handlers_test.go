package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/auth"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/identity"
	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/store"
)

func newAuthTestHandler(ms *store.MemoryStore) *AuthHandler {
	hasher := identity.NewHasher("test-salt")
	svc := auth.NewService(ms, testSetupToken, 0)
	return NewAuthHandler(svc, hasher, nil, false)
}

func doAuth(h *AuthHandler, method, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, "/api/auth", nil)
	} else {
		r = httptest.NewRequest(method, "/api/auth", strings.NewReader(body))
	}
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("User-Agent", "auth-test/1.0")
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName && c.MaxAge > 0 {
			return c
		}
	}
	t.Fatalf("no session cookie in response: %s", w.Body.String())
	return nil
}

func TestAuthHandler_Setup(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{
			name:     "valid setup",
			body:     `{"action":"setup","password":"hunter2hunter2","setupToken":"` + testSetupToken + `"}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong setup token",
			body:     `{"action":"setup","password":"hunter2hunter2","setupToken":"wrong"}`,
			wantCode: http.StatusForbidden,
			wantErr:  ErrCodeInvalidSetupToken,
		},
		{
			name:     "missing setup token",
			body:     `{"action":"setup","password":"hunter2hunter2"}`,
			wantCode: http.StatusForbidden,
			wantErr:  ErrCodeInvalidSetupToken,
		},
		{
			name:     "weak password",
			body:     `{"action":"setup","password":"short","setupToken":"` + testSetupToken + `"}`,
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthTestHandler(store.NewMemoryStore())
			w := doAuth(h, http.MethodPost, tt.body, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("got %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantErr != "" {
				if code := errorCode(t, w); code != tt.wantErr {
					t.Errorf("error code = %q, want %q", code, tt.wantErr)
				}
			} else {
				sessionCookie(t, w)
			}
		})
	}
}

func TestAuthHandler_SecondSetupConflicts(t *testing.T) {
	h := newAuthTestHandler(store.NewMemoryStore())
	body := `{"action":"setup","password":"hunter2hunter2","setupToken":"` + testSetupToken + `"}`

	if w := doAuth(h, http.MethodPost, body, nil); w.Code != http.StatusOK {
		t.Fatalf("first setup returned %d", w.Code)
	}
	w := doAuth(h, http.MethodPost, body, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second setup returned %d, want 409", w.Code)
	}
}

func TestAuthHandler_LoginFlow(t *testing.T) {
	h := newAuthTestHandler(store.NewMemoryStore())
	setup := `{"action":"setup","password":"hunter2hunter2","setupToken":"` + testSetupToken + `"}`
	if w := doAuth(h, http.MethodPost, setup, nil); w.Code != http.StatusOK {
		t.Fatalf("setup returned %d", w.Code)
	}

	w := doAuth(h, http.MethodPost, `{"password":"wrong password"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password returned %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeAuthFailed {
		t.Errorf("error code = %q, want %q", code, ErrCodeAuthFailed)
	}

	w = doAuth(h, http.MethodPost, `{"password":"hunter2hunter2"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("correct password returned %d: %s", w.Code, w.Body.String())
	}
	cookie := sessionCookie(t, w)
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	w = doAuth(h, http.MethodGet, "", cookie)
	var status auth.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Authenticated {
		t.Error("status should report authenticated after login")
	}
	if status.NeedsSetup {
		t.Error("status should not report needsSetup after setup")
	}
}

func TestAuthHandler_TOTPFlow(t *testing.T) {
	h := newAuthTestHandler(store.NewMemoryStore())
	setup := `{"action":"setup","password":"hunter2hunter2","setupToken":"` + testSetupToken + `"}`
	cookie := sessionCookie(t, doAuth(h, http.MethodPost, setup, nil))

	w := doAuth(h, http.MethodPost, `{"action":"totp-setup"}`, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("totp-setup returned %d: %s", w.Code, w.Body.String())
	}
	var enrollment auth.Enrollment
	if err := json.Unmarshal(w.Body.Bytes(), &enrollment); err != nil {
		t.Fatalf("decode enrollment: %v", err)
	}
	if enrollment.Secret == "" || !strings.HasPrefix(enrollment.URI, "otpauth://") {
		t.Fatalf("unexpected enrollment payload: %+v", enrollment)
	}

	// Password alone now signals that a code is needed, nothing more.
	w = doAuth(h, http.MethodPost, `{"password":"hunter2hunter2"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login without code returned %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeTOTPRequired {
		t.Errorf("error code = %q, want %q", code, ErrCodeTOTPRequired)
	}

	// A wrong code is indistinguishable from a wrong password.
	w = doAuth(h, http.MethodPost, `{"password":"hunter2hunter2","code":"000000"}`, nil)
	if code := errorCode(t, w); code != ErrCodeAuthFailed {
		t.Errorf("wrong code error = %q, want %q", code, ErrCodeAuthFailed)
	}

	valid, err := totp.GenerateCode(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	w = doAuth(h, http.MethodPost, `{"password":"hunter2hunter2","code":"`+valid+`"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login with valid code returned %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthHandler_PasswordChange(t *testing.T) {
	h := newAuthTestHandler(store.NewMemoryStore())
	setup := `{"action":"setup","password":"hunter2hunter2","setupToken":"` + testSetupToken + `"}`
	cookie := sessionCookie(t, doAuth(h, http.MethodPost, setup, nil))

	w := doAuth(h, http.MethodPost, `{"newPassword":"betterpassword"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("password change without session returned %d, want 401", w.Code)
	}

	w = doAuth(h, http.MethodPost, `{"newPassword":"betterpassword"}`, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("password change returned %d: %s", w.Code, w.Body.String())
	}

	if w = doAuth(h, http.MethodPost, `{"password":"hunter2hunter2"}`, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("old password still accepted after change")
	}
	if w = doAuth(h, http.MethodPost, `{"password":"betterpassword"}`, nil); w.Code != http.StatusOK {
		t.Errorf("new password rejected after change: %d", w.Code)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	h := newAuthTestHandler(store.NewMemoryStore())
	setup := `{"action":"setup","password":"hunter2hunter2","setupToken":"` + testSetupToken + `"}`
	cookie := sessionCookie(t, doAuth(h, http.MethodPost, setup, nil))

	w := doAuth(h, http.MethodDelete, "", cookie)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout returned %d, want 204", w.Code)
	}

	w = doAuth(h, http.MethodGet, "", cookie)
	var status auth.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Authenticated {
		t.Error("session should be invalid after logout")
	}

	// Logging out again with the dead cookie still succeeds.
	if w = doAuth(h, http.MethodDelete, "", cookie); w.Code != http.StatusNoContent {
		t.Errorf("repeat logout returned %d, want 204", w.Code)
	}
}

func TestAuthHandler_FingerprintMismatchRejected(t *testing.T) {
	h := newAuthTestHandler(store.NewMemoryStore())
	setup := `{"action":"setup","password":"hunter2hunter2","setupToken":"` + testSetupToken + `"}`
	cookie := sessionCookie(t, doAuth(h, http.MethodPost, setup, nil))

	r := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	r.RemoteAddr = "198.51.100.1:40000" // different address than at login
	r.Header.Set("User-Agent", "auth-test/1.0")
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var status auth.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Authenticated {
		t.Error("session presented from a different network identity should not authenticate")
	}
}

func TestAuthHandler_StoreFailureFailsClosed(t *testing.T) {
	ms := store.NewMemoryStore()
	h := newAuthTestHandler(ms)
	ms.FailWith(errors.New("connection refused"))

	w := doAuth(h, http.MethodPost, `{"password":"hunter2hunter2"}`, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("login during store outage returned %d, want 503", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeServiceError {
		t.Errorf("error code = %q, want %q", code, ErrCodeServiceError)
	}
}

func TestAuthHandler_UnknownActionRejected(t *testing.T) {
	h := newAuthTestHandler(store.NewMemoryStore())
	w := doAuth(h, http.MethodPost, `{"action":"frobnicate"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown action returned %d, want 400", w.Code)
	}
}
