// Package auth provides authentication utilities for sessions and API keys.
package auth

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Key format: sk_{uuid-v4}
// Example: sk_123e4567-e89b-42d3-a456-426614174000
const KeyPrefix = "sk_"

var (
	// ErrInvalidKeyFormat indicates the key format is invalid.
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	// keyFormatRegex validates the key format.
	keyFormatRegex = regexp.MustCompile(`^sk_[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
)

// GenerateAPIKey creates a new plaintext API key with 122 bits of randomness.
func GenerateAPIKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return KeyPrefix + id.String(), nil
}

// ValidateKeyFormat checks if the key matches the expected format.
func ValidateKeyFormat(key string) bool {
	return keyFormatRegex.MatchString(key)
}
