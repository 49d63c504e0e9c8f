// Package auth implements admin credential storage, session management with
// fingerprint binding, and optional TOTP two-factor verification.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters. Memory-hard by design; verification cost is the
// point, not a problem to optimize away.
type kdfParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLen     uint32
	keyLen      uint32
}

var defaultKDFParams = kdfParams{
	memory:      64 * 1024,
	iterations:  3,
	parallelism: 2,
	saltLen:     16,
	keyLen:      32,
}

// ErrMalformedHash is returned when a stored credential cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// HashPassword derives an argon2id hash of plaintext with a fresh random
// salt and returns it in PHC string format.
func HashPassword(plaintext string) (string, error) {
	return hashPasswordWithParams(plaintext, defaultKDFParams)
}

// VerifyPassword checks plaintext against a PHC-format argon2id hash.
// The comparison is constant-time over the derived keys.
func VerifyPassword(hash, plaintext string) (bool, error) {
	p, salt, key, err := parseHash(hash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(plaintext), salt, p.iterations, p.memory, p.parallelism, p.keyLen)
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func hashPasswordWithParams(plaintext string, p kdfParams) (string, error) {
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, p.iterations, p.memory, p.parallelism, p.keyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.memory,
		p.iterations,
		p.parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

func parseHash(hash string) (kdfParams, []byte, []byte, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return kdfParams{}, nil, nil, ErrMalformedHash
	}
	if parts[2] != "v=19" {
		return kdfParams{}, nil, nil, fmt.Errorf("%w: unsupported version", ErrMalformedHash)
	}

	var p kdfParams
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return kdfParams{}, nil, nil, ErrMalformedHash
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return kdfParams{}, nil, nil, ErrMalformedHash
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return kdfParams{}, nil, nil, ErrMalformedHash
			}
			p.iterations = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return kdfParams{}, nil, nil, ErrMalformedHash
			}
			p.parallelism = uint8(n)
		default:
			return kdfParams{}, nil, nil, ErrMalformedHash
		}
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return kdfParams{}, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return kdfParams{}, nil, nil, ErrMalformedHash
	}
	p.saltLen = uint32(len(salt))
	p.keyLen = uint32(len(key))
	if p.saltLen == 0 || p.keyLen == 0 {
		return kdfParams{}, nil, nil, ErrMalformedHash
	}

	return p, salt, key, nil
}
