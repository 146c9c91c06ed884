package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/cache"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
)

// ErrInvalidAPIKey means the presented key is malformed, unknown or inactive.
var ErrInvalidAPIKey = errors.New("invalid API key")

// KeyLookupStore resolves presented keys to their owners.
type KeyLookupStore interface {
	GetActiveAPIKeyByValue(ctx context.Context, value string) (*model.APIKey, error)
	GetProfileByID(ctx context.Context, id string) (*model.Profile, error)
}

// KeyOwnerCache caches key owners by fingerprint.
type KeyOwnerCache interface {
	GetKeyOwner(ctx context.Context, fingerprint string) (*cache.KeyOwner, error)
	SetKeyOwner(ctx context.Context, fingerprint string, owner *cache.KeyOwner) error
	DeleteKeyOwner(ctx context.Context, fingerprint, userID string) error
}

// KeyResolver maps a presented API key to the identity that owns it.
type KeyResolver struct {
	store  KeyLookupStore
	cache  KeyOwnerCache
	fp     *auth.Fingerprinter
	logger *slog.Logger
}

// NewKeyResolver creates a new KeyResolver. cache may be nil.
func NewKeyResolver(store KeyLookupStore, ownerCache KeyOwnerCache, fp *auth.Fingerprinter, logger *slog.Logger) *KeyResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyResolver{store: store, cache: ownerCache, fp: fp, logger: logger}
}

// Resolve returns the owner identity and key id for an active key.
func (r *KeyResolver) Resolve(ctx context.Context, presented string) (model.Identity, string, error) {
	if !auth.ValidateKeyFormat(presented) {
		return model.Identity{}, "", ErrInvalidAPIKey
	}

	fingerprint := r.fp.Sum(presented)
	if r.cache != nil {
		if owner, _ := r.cache.GetKeyOwner(ctx, fingerprint); owner != nil {
			return model.Identity{ID: owner.UserID, Email: owner.Email, EmailVerified: true}, owner.KeyID, nil
		}
	}

	key, err := r.store.GetActiveAPIKeyByValue(ctx, presented)
	if errors.Is(err, repository.ErrAPIKeyNotFound) {
		return model.Identity{}, "", ErrInvalidAPIKey
	}
	if err != nil {
		return model.Identity{}, "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	owner := &cache.KeyOwner{KeyID: key.ID, UserID: key.UserID}
	cacheable := true
	profile, err := r.store.GetProfileByID(ctx, key.UserID)
	switch {
	case err == nil:
		owner.Email = profile.Email
	case errors.Is(err, repository.ErrProfileNotFound):
		r.logger.Warn("api key owner has no profile; email-based admin checks will not match",
			slog.String("user_id", key.UserID),
		)
	default:
		cacheable = false
		r.logger.Warn("failed to load key owner profile",
			slog.String("user_id", key.UserID),
			slog.String("error", err.Error()),
		)
	}

	if r.cache != nil && cacheable {
		if err := r.fill(ctx, presented, fingerprint, owner); err != nil {
			return model.Identity{}, "", err
		}
	}

	return model.Identity{ID: owner.UserID, Email: owner.Email, EmailVerified: true}, owner.KeyID, nil
}

// fill caches owner, then confirms the key is still active. A rotation
// deactivates keys before it invalidates the cache, so either the second read
// sees the deactivation or the invalidation runs after this write.
func (r *KeyResolver) fill(ctx context.Context, presented, fingerprint string, owner *cache.KeyOwner) error {
	if err := r.cache.SetKeyOwner(ctx, fingerprint, owner); err != nil {
		r.logger.Warn("failed to cache key owner", slog.String("error", err.Error()))
		return nil
	}

	key, err := r.store.GetActiveAPIKeyByValue(ctx, presented)
	if err == nil && key.ID == owner.KeyID {
		return nil
	}

	if delErr := r.cache.DeleteKeyOwner(ctx, fingerprint, owner.UserID); delErr != nil {
		r.logger.Warn("failed to drop cached key owner",
			slog.String("user_id", owner.UserID),
			slog.String("error", delErr.Error()),
		)
	}
	switch {
	case err == nil, errors.Is(err, repository.ErrAPIKeyNotFound):
		return ErrInvalidAPIKey
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
