package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/store"
)

// DefaultSessionTTL bounds how long a session lives in the store. The
// store is TTL-native, so sessions are reaped automatically instead of
// accumulating forever.
const DefaultSessionTTL = 30 * 24 * time.Hour

// sessionTokenBytes is the entropy of an opaque session token.
const sessionTokenBytes = 32

// Session is the server-side state bound to an opaque token.
type Session struct {
	CreatedAt       time.Time `json:"created_at"`
	FingerprintHash string    `json:"fingerprint_hash"`
}

// newSessionToken returns an unguessable opaque token.
func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// createSession persists a new session bound to fingerprint and returns
// its token.
func (s *Service) createSession(ctx context.Context, fingerprint string) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}

	sess := Session{
		CreatedAt:       s.now().UTC(),
		FingerprintHash: fingerprint,
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	if err := s.store.Set(ctx, store.SessionKey(token), string(payload), s.sessionTTL); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// validateSession checks a presented token against the stored session and
// the fingerprint recomputed from the presenting request.
//
// A fingerprint mismatch on a matching token is treated as session theft:
// the session is invalidated immediately and the caller must log in again.
func (s *Service) validateSession(ctx context.Context, token, fingerprint string) (bool, error) {
	if token == "" {
		return false, nil
	}

	raw, ok, err := s.store.Get(ctx, store.SessionKey(token))
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return false, nil
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// Unreadable session state is invalid state; drop it.
		_ = s.store.Delete(ctx, store.SessionKey(token))
		return false, nil
	}

	if sess.FingerprintHash != fingerprint {
		slog.WarnContext(ctx, "session fingerprint mismatch, invalidating session")
		_ = s.store.Delete(ctx, store.SessionKey(token))
		return false, nil
	}

	return true, nil
}

// deleteSession removes a session. Idempotent.
func (s *Service) deleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Delete(ctx, store.SessionKey(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
