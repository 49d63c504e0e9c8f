// Package identity derives non-reversible client identities from network
// addresses. Raw addresses never leave this package; every other component
// works with the salted hash.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// fallbackAddr is used when no usable address can be extracted from a request.
const fallbackAddr = "127.0.0.1"

// Hasher computes salted one-way hashes of client network addresses.
// The same salt must be used by every component in a deployment so that
// the gate, rate limiter, honeypot and session fingerprints all agree on
// what an identity is.
type Hasher struct {
	salt string
}

// NewHasher creates a Hasher with the given deployment salt.
// An empty salt is only acceptable in development; config validation
// rejects it for production deployments before this is ever constructed.
func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Hash returns the 64-character hex digest of SHA-256(salt || addr).
// Identical addresses always produce identical digests within one
// deployment.
func (h *Hasher) Hash(addr string) string {
	sum := sha256.Sum256([]byte(h.salt + addr))
	return hex.EncodeToString(sum[:])
}

// Fingerprint derives a session-binding fingerprint from a hashed identity
// and the requesting user agent. A stolen session token presented from a
// different address or client produces a different fingerprint.
func (h *Hasher) Fingerprint(hashedIdentity, userAgent string) string {
	sum := sha256.Sum256([]byte(h.salt + hashedIdentity + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

// FromRequest extracts the client address from an HTTP request and returns
// its hashed identity. It prefers the first X-Forwarded-For entry, then
// X-Real-IP, then the host portion of RemoteAddr.
func (h *Hasher) FromRequest(r *http.Request) string {
	return h.Hash(ClientAddr(r))
}

// ClientAddr extracts the raw client address from a request.
// Exposed separately so the fingerprint and the identity hash are
// guaranteed to observe the same address.
func ClientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Use the first IP in the chain, trimming whitespace per RFC 7239
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return fallbackAddr
	}
	return host
}
