// Package model defines domain entities for the application.
package model

import "time"

// RateLimitConfig defines rate limit parameters for the public search API.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// DefaultAPIRateLimit is the documented 100 requests/minute quota.
var DefaultAPIRateLimit = RateLimitConfig{RequestsPerMinute: 100, Burst: 20}

// APIKey represents an API key entity.
// KeyValue is kept in plaintext so an existing key can be shown again.
type APIKey struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	KeyValue  string    `json:"-"` // Never serialize
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyPrefixLen is how many leading characters of a key are safe to display.
const KeyPrefixLen = 11

// MaskedValue returns the key with everything past the display prefix hidden.
func (k *APIKey) MaskedValue() string {
	if len(k.KeyValue) <= KeyPrefixLen {
		return k.KeyValue
	}
	return k.KeyValue[:KeyPrefixLen] + "…"
}

// ToResponse converts an APIKey to the admin listing shape.
func (k *APIKey) ToResponse() APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		KeyPrefix: k.MaskedValue(),
		IsActive:  k.IsActive,
		CreatedAt: k.CreatedAt,
	}
}

// APIKeyResponse is an API key without its secret.
type APIKeyResponse struct {
	ID        string    `json:"id"`
	KeyPrefix string    `json:"key_prefix"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKeyAction selects the operation on POST /api-key.
type APIKeyAction string

const (
	ActionRegenerate APIKeyAction = "regenerate"
)

// APIKeyRequest is the POST body of the api-key endpoint.
type APIKeyRequest struct {
	Action APIKeyAction `json:"action"`
}

// APIKeyResult is the success body of the api-key endpoint.
type APIKeyResult struct {
	APIKey string `json:"api_key"`
}
