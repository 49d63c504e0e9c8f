package auth

import (
	"fmt"

	"github.com/pquerna/otp/totp"
)

// totpIssuer appears in authenticator apps next to the account entry.
const totpIssuer = "neuroklast"

// totpAccountName labels the single admin credential.
const totpAccountName = "admin"

// Enrollment is returned once at TOTP setup time. The secret is never
// shown again; the admin must store it in their authenticator immediately.
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// generateTOTPSecret creates a fresh shared secret and its otpauth:// URI.
func generateTOTPSecret() (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: totpAccountName,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	return Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
	}, nil
}

// verifyTOTPCode checks a 6-digit time-based code against the shared
// secret, allowing the library's default clock skew window.
func verifyTOTPCode(secret, code string) bool {
	return totp.Validate(code, secret)
}
