package identity

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHash_Deterministic(t *testing.T) {
	h := NewHasher("test-salt")

	a := h.Hash("203.0.113.7")
	b := h.Hash("203.0.113.7")

	if a != b {
		t.Errorf("same address should hash identically: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(a))
	}
	for _, c := range a {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("digest contains non-hex character %q", c)
		}
	}
}

func TestHash_SaltChangesDigest(t *testing.T) {
	a := NewHasher("salt-one").Hash("203.0.113.7")
	b := NewHasher("salt-two").Hash("203.0.113.7")

	if a == b {
		t.Error("different salts should produce different digests")
	}
}

func TestHash_AddressNotRecoverable(t *testing.T) {
	h := NewHasher("test-salt")
	digest := h.Hash("203.0.113.7")

	if strings.Contains(digest, "203") || strings.Contains(digest, "113") {
		t.Error("digest should not contain fragments of the raw address")
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "x-forwarded-for single value",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for chain uses first entry",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2, 10.0.0.3"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for with whitespace",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "  203.0.113.7 , 10.0.0.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			want:       "198.51.100.4",
		},
		{
			name:       "remote addr fallback strips port",
			remoteAddr: "198.51.100.4:54321",
			want:       "198.51.100.4",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "empty remote addr falls back to loopback",
			remoteAddr: "",
			want:       "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientAddr(r); got != tt.want {
				t.Errorf("ClientAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromRequest_MatchesHashOfClientAddr(t *testing.T) {
	h := NewHasher("test-salt")
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")

	if got, want := h.FromRequest(r), h.Hash("203.0.113.7"); got != want {
		t.Errorf("FromRequest() = %q, want %q", got, want)
	}
}

func TestFingerprint(t *testing.T) {
	h := NewHasher("test-salt")
	id := h.Hash("203.0.113.7")

	fp1 := h.Fingerprint(id, "Mozilla/5.0")
	fp2 := h.Fingerprint(id, "Mozilla/5.0")
	if fp1 != fp2 {
		t.Error("same identity and user agent should produce the same fingerprint")
	}

	if h.Fingerprint(id, "curl/8.0") == fp1 {
		t.Error("different user agent should change the fingerprint")
	}
	if h.Fingerprint(h.Hash("198.51.100.4"), "Mozilla/5.0") == fp1 {
		t.Error("different identity should change the fingerprint")
	}
}
