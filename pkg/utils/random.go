package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// MinShortCodeBytes is the least entropy a short code may carry.
const MinShortCodeBytes = 6

// GenerateShortCode returns a URL-safe code built from n random bytes.
// The encoded length is fixed for a given n (8 characters for 6 bytes).
func GenerateShortCode(n int) (string, error) {
	if n < MinShortCodeBytes {
		n = MinShortCodeBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateAPIKey generates a UUID string to be used as an API key.
func GenerateAPIKey() string {
	return uuid.NewString()
}
