package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// KeyVerifier checks a presented static key against the configured one.
// When a bcrypt hash is configured it is used instead of the plain key.
type KeyVerifier struct {
	plain string
	hash  []byte
}

// NewKeyVerifier creates a verifier. Either argument may be empty.
func NewKeyVerifier(plain, hash string) *KeyVerifier {
	v := &KeyVerifier{plain: plain}
	if hash != "" {
		v.hash = []byte(hash)
	}
	return v
}

// Configured reports whether any static key is set.
func (v *KeyVerifier) Configured() bool {
	return v.plain != "" || len(v.hash) > 0
}

// Verify reports whether key matches.
func (v *KeyVerifier) Verify(key string) bool {
	if key == "" {
		return false
	}
	if len(v.hash) > 0 {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(key)) == nil
	}
	if v.plain == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v.plain), []byte(key)) == 1
}

// HashKey returns a bcrypt hash of key suitable for auth.api_key_hash.
func HashKey(key string, cost int) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}
