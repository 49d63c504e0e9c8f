package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/store"
)

// Authentication errors. Wrong passwords and wrong TOTP codes both map to
// ErrAuthFailed so callers cannot learn which factor failed; ErrTOTPRequired
// is the one deliberate, minimal-disclosure exception.
var (
	ErrAuthFailed        = errors.New("authentication failed")
	ErrTOTPRequired      = errors.New("totp code required")
	ErrNeedsSetup        = errors.New("no admin credential configured")
	ErrAlreadyConfigured = errors.New("admin credential already configured")
	ErrInvalidSetupToken = errors.New("invalid setup token")
	ErrWeakPassword      = errors.New("password must be at least 8 characters")
	ErrTOTPEnabled       = errors.New("totp already enabled")
	ErrTOTPNotEnabled    = errors.New("totp not enabled")
	ErrNotAuthenticated  = errors.New("not authenticated")
)

// minPasswordLen is the minimum accepted password length.
const minPasswordLen = 8

// Status is the public view of the auth state, derived per request from
// credential presence, TOTP presence, and session validity.
type Status struct {
	Authenticated      bool `json:"authenticated"`
	NeedsSetup         bool `json:"needsSetup"`
	TOTPEnabled        bool `json:"totpEnabled"`
	SetupTokenRequired bool `json:"setupTokenRequired"`
}

// Service implements the admin auth state machine on top of the shared
// store. Unlike the admission-control components, auth fails CLOSED: a
// store error is surfaced to the caller as a service error, never treated
// as success.
type Service struct {
	store      store.Store
	setupToken string
	sessionTTL time.Duration
	now        func() time.Time
}

// NewService creates a Service. setupToken may be empty, in which case
// first-time setup is open to whoever reaches it first.
func NewService(s store.Store, setupToken string, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Service{
		store:      s,
		setupToken: setupToken,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// SetClock replaces the service's clock. Test helper.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Status derives the current auth state for a presenting request.
func (s *Service) Status(ctx context.Context, token, fingerprint string) (Status, error) {
	hasCredential, err := s.store.Exists(ctx, store.KeyAdminCredential)
	if err != nil {
		return Status{}, fmt.Errorf("check credential: %w", err)
	}
	hasTOTP, err := s.store.Exists(ctx, store.KeyAdminTOTP)
	if err != nil {
		return Status{}, fmt.Errorf("check totp: %w", err)
	}
	authenticated, err := s.validateSession(ctx, token, fingerprint)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Authenticated:      authenticated,
		NeedsSetup:         !hasCredential,
		TOTPEnabled:        hasTOTP,
		SetupTokenRequired: s.setupToken != "",
	}, nil
}

// Authenticate reports whether the presented token plus recomputed
// fingerprint identify a valid session.
func (s *Service) Authenticate(ctx context.Context, token, fingerprint string) (bool, error) {
	return s.validateSession(ctx, token, fingerprint)
}

// Setup creates the admin credential. Permitted only when none exists.
// When a setup token is configured for the deployment the supplied token
// must match. Returns a new session token on success.
func (s *Service) Setup(ctx context.Context, password, suppliedToken, fingerprint string) (string, error) {
	exists, err := s.store.Exists(ctx, store.KeyAdminCredential)
	if err != nil {
		return "", fmt.Errorf("check credential: %w", err)
	}
	if exists {
		return "", ErrAlreadyConfigured
	}

	if s.setupToken != "" {
		if subtle.ConstantTimeCompare([]byte(suppliedToken), []byte(s.setupToken)) != 1 {
			return "", ErrInvalidSetupToken
		}
	}

	if len(password) < minPasswordLen {
		return "", ErrWeakPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Set(ctx, store.KeyAdminCredential, hash, 0); err != nil {
		return "", fmt.Errorf("store credential: %w", err)
	}

	return s.createSession(ctx, fingerprint)
}

// Login verifies the password and, when TOTP is enrolled, the 6-digit
// code. A correct password with a missing code yields ErrTOTPRequired and
// no session; an incorrect code yields the generic ErrAuthFailed.
func (s *Service) Login(ctx context.Context, password, code, fingerprint string) (string, error) {
	hash, ok, err := s.store.Get(ctx, store.KeyAdminCredential)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if !ok {
		return "", ErrNeedsSetup
	}

	match, err := VerifyPassword(hash, password)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return "", ErrAuthFailed
	}

	secret, hasTOTP, err := s.store.Get(ctx, store.KeyAdminTOTP)
	if err != nil {
		return "", fmt.Errorf("load totp: %w", err)
	}
	if hasTOTP {
		if code == "" {
			return "", ErrTOTPRequired
		}
		if !verifyTOTPCode(secret, code) {
			return "", ErrAuthFailed
		}
	}

	return s.createSession(ctx, fingerprint)
}

// ChangePassword replaces the admin credential. The caller must already
// hold a valid session; handlers enforce that before calling.
func (s *Service) ChangePassword(ctx context.Context, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	exists, err := s.store.Exists(ctx, store.KeyAdminCredential)
	if err != nil {
		return fmt.Errorf("check credential: %w", err)
	}
	if !exists {
		return ErrNeedsSetup
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Set(ctx, store.KeyAdminCredential, hash, 0); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// EnrollTOTP generates and persists a new shared secret. Fails if one
// already exists; disable first to rotate. The returned enrollment holds
// the raw secret and is shown exactly once.
func (s *Service) EnrollTOTP(ctx context.Context) (Enrollment, error) {
	exists, err := s.store.Exists(ctx, store.KeyAdminTOTP)
	if err != nil {
		return Enrollment{}, fmt.Errorf("check totp: %w", err)
	}
	if exists {
		return Enrollment{}, ErrTOTPEnabled
	}

	enrollment, err := generateTOTPSecret()
	if err != nil {
		return Enrollment{}, err
	}
	if err := s.store.Set(ctx, store.KeyAdminTOTP, enrollment.Secret, 0); err != nil {
		return Enrollment{}, fmt.Errorf("store totp: %w", err)
	}
	return enrollment, nil
}

// DisableTOTP removes the shared secret. Requires both the current
// password and a currently valid code so a hijacked session alone cannot
// weaken the account.
func (s *Service) DisableTOTP(ctx context.Context, password, code string) error {
	hash, ok, err := s.store.Get(ctx, store.KeyAdminCredential)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if !ok {
		return ErrNeedsSetup
	}

	match, err := VerifyPassword(hash, password)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return ErrAuthFailed
	}

	secret, hasTOTP, err := s.store.Get(ctx, store.KeyAdminTOTP)
	if err != nil {
		return fmt.Errorf("load totp: %w", err)
	}
	if !hasTOTP {
		return ErrTOTPNotEnabled
	}
	if !verifyTOTPCode(secret, code) {
		return ErrAuthFailed
	}

	if err := s.store.Delete(ctx, store.KeyAdminTOTP); err != nil {
		return fmt.Errorf("delete totp: %w", err)
	}
	return nil
}

// Logout deletes the presented session. Idempotent; logging out with an
// unknown or empty token succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.deleteSession(ctx, token)
}
