package validate

import "errors"

// ErrInvalidKey indicates a content key outside the allowed charset.
var ErrInvalidKey = errors.New("invalid content key")

// maxKeyLength bounds content keys; they name site fragments, not data.
const maxKeyLength = 64

// ContentKey validates a content storage key. Keys form a flat namespace
// of lowercase letters, digits, dash and underscore, so they can appear in
// URLs and Redis keys without escaping.
func ContentKey(key string) (string, error) {
	if key == "" {
		return "", ErrEmpty
	}
	if len(key) > maxKeyLength {
		return "", ErrTooLong
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return "", ErrInvalidKey
		}
	}
	return key, nil
}
