// Package store provides the shared counter/state store used by the gate,
// rate limiter, honeypot and auth components. It is the only shared mutable
// resource in the service; all cross-request coordination goes through it.
package store

import (
	"context"
	"time"
)

// Store is the abstraction over a low-latency key-value store with per-key
// expiration and atomic increments. Production uses Redis; tests use the
// in-memory implementation.
//
// All methods honor context cancellation and return promptly once the
// underlying call times out. Callers decide fail-open vs fail-closed on
// error; the store itself never masks failures.
type Store interface {
	// IncrWithTTL atomically increments the counter at key and arms the TTL
	// only when the key is created by this increment. Returns the
	// post-increment value.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the value at key. The boolean is false if the key does
	// not exist or has expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value at key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// PushCapped prepends value to the list at key and trims the list to
	// at most cap entries, evicting the oldest.
	PushCapped(ctx context.Context, key, value string, cap int64) error

	// List returns the list entries at key in the inclusive range
	// [start, stop], newest first. Negative indices count from the end.
	List(ctx context.Context, key string, start, stop int64) ([]string, error)

	// SetAdd adds member to the set at key.
	SetAdd(ctx context.Context, key, member string) error
}

// Key namespaces. Every component prefixes its keys so operators can
// inspect and clear state selectively.
const (
	KeyCircuit          = "gate:circuit"
	KeyGlobalWindow     = "gate:global:"
	KeyBlocklistPrefix  = "blocklist:"
	KeyRateLimitPrefix  = "rl:"
	KeySessionPrefix    = "session:"
	KeyAdminCredential  = "admin:credential"
	KeyAdminTOTP        = "admin:totp"
	KeyHoneypotAlerts   = "honeypot:alerts"
	KeyNewsletterSubs   = "newsletter:subscribers"
	KeyContentPrefix    = "kv:"
)

// BlocklistKey returns the blocklist key for a hashed identity.
func BlocklistKey(hashedIdentity string) string {
	return KeyBlocklistPrefix + hashedIdentity
}

// SessionKey returns the session key for an opaque token.
func SessionKey(token string) string {
	return KeySessionPrefix + token
}

// ContentKey returns the content storage key for a key-value entry.
func ContentKey(name string) string {
	return KeyContentPrefix + name
}
