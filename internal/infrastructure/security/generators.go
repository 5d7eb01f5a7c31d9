// Package security provides ID generation and hook token utilities
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateULID returns a new lexically sortable ID for request IDs, token IDs
// and memory database names.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateSecureKey returns n random bytes hex-encoded, suitable as a
// HOOK_SECRET.
func GenerateSecureKey(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("key size must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
