package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// keyOwnerSpace holds API key owner lookups by fingerprint.
	keyOwnerSpace = "apikey:owner"
	// userKeysSpace indexes the owner entries cached for a user.
	userKeysSpace = "apikey:user"
	// keyOwnerTTL is the time-to-live for cached owner lookups.
	keyOwnerTTL = 5 * time.Minute
)

// KeyOwner is the cached resolution of an API key fingerprint.
type KeyOwner struct {
	KeyID  string `json:"key_id"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// GetKeyOwner retrieves a cached key owner by key fingerprint.
// Returns nil if not found (cache miss).
func (c *Cache) GetKeyOwner(ctx context.Context, fingerprint string) (*KeyOwner, error) {
	data, err := c.client.Get(ctx, c.key(keyOwnerSpace, fingerprint)).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var owner KeyOwner
	if err := json.Unmarshal(data, &owner); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &owner, nil
}

// SetKeyOwner caches a key owner and indexes it under the user so a rotation
// can drop it.
func (c *Cache) SetKeyOwner(ctx context.Context, fingerprint string, owner *KeyOwner) error {
	data, err := json.Marshal(owner)
	if err != nil {
		return fmt.Errorf("marshal key owner: %w", err)
	}

	indexKey := c.key(userKeysSpace, owner.UserID)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.key(keyOwnerSpace, fingerprint), data, keyOwnerTTL)
	pipe.SAdd(ctx, indexKey, fingerprint)
	pipe.Expire(ctx, indexKey, keyOwnerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache key owner: %w", err)
	}
	return nil
}

// DeleteKeyOwner drops a single cached owner entry.
func (c *Cache) DeleteKeyOwner(ctx context.Context, fingerprint, userID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key(keyOwnerSpace, fingerprint))
	pipe.SRem(ctx, c.key(userKeysSpace, userID), fingerprint)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete key owner: %w", err)
	}
	return nil
}

// InvalidateUserKeys removes every cached owner entry for a user.
func (c *Cache) InvalidateUserKeys(ctx context.Context, userID string) error {
	indexKey := c.key(userKeysSpace, userID)

	fingerprints, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("read key index: %w", err)
	}

	keys := make([]string, 0, len(fingerprints)+1)
	for _, fp := range fingerprints {
		keys = append(keys, c.key(keyOwnerSpace, fp))
	}
	keys = append(keys, indexKey)

	return c.client.Del(ctx, keys...).Err()
}
