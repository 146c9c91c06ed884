package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zeenbase/zeenbase/internal/auth"
	"github.com/zeenbase/zeenbase/internal/cache"
	"github.com/zeenbase/zeenbase/internal/metrics"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
)

// Key manager errors.
var (
	ErrKeyCreationFailed      = errors.New("failed to create API key")
	ErrKeyRotationFailed      = errors.New("failed to rotate API key")
	ErrStoreUnavailable       = errors.New("credential store unavailable")
	ErrKeyOperationInProgress = errors.New("another API key operation is in progress")
)

// KeyStore is the api_keys table as seen by the key manager.
type KeyStore interface {
	GetActiveAPIKey(ctx context.Context, userID string) (*model.APIKey, error)
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	DeactivateOtherAPIKeys(ctx context.Context, userID, keepID string) (int64, error)
	DeleteAPIKey(ctx context.Context, id string) error
}

// Locker provides named mutual exclusion across replicas.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

// KeyCacheInvalidator drops cached key lookups for a user.
type KeyCacheInvalidator interface {
	InvalidateUserKeys(ctx context.Context, userID string) error
}

// KeyManagerConfig configures a KeyManager.
type KeyManagerConfig struct {
	Store   KeyStore
	Locker  Locker              // optional; nil disables per-user serialization
	Cache   KeyCacheInvalidator // optional
	Logger  *slog.Logger
	Metrics metrics.Recorder

	// LockTTL bounds how long a crashed holder can block a user.
	LockTTL time.Duration
	// LockWait is how long IssueOrFetch waits for a concurrent issuer.
	LockWait time.Duration

	// GenerateKey overrides key generation in tests.
	GenerateKey func() (string, error)
}

// KeyManager issues and rotates API keys, keeping at most one active key per user.
type KeyManager struct {
	store    KeyStore
	locker   Locker
	cache    KeyCacheInvalidator
	logger   *slog.Logger
	metrics  metrics.Recorder
	lockTTL  time.Duration
	lockWait time.Duration
	genKey   func() (string, error)
	now      func() time.Time
}

// NewKeyManager creates a new KeyManager.
func NewKeyManager(cfg KeyManagerConfig) *KeyManager {
	m := &KeyManager{
		store:    cfg.Store,
		locker:   cfg.Locker,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		lockTTL:  cfg.LockTTL,
		lockWait: cfg.LockWait,
		genKey:   cfg.GenerateKey,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.metrics == nil {
		m.metrics = metrics.NewNoop()
	}
	if m.lockTTL <= 0 {
		m.lockTTL = 10 * time.Second
	}
	if m.lockWait <= 0 {
		m.lockWait = 2 * time.Second
	}
	if m.genKey == nil {
		m.genKey = auth.GenerateAPIKey
	}
	return m
}

// IssueOrFetch returns the user's active key, creating one if none exists.
// Repeated calls return the same key until Regenerate is called.
func (m *KeyManager) IssueOrFetch(ctx context.Context, userID string) (string, error) {
	existing, err := m.activeKey(ctx, userID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		m.metrics.IncKeyFetched()
		return existing.KeyValue, nil
	}

	release, err := m.lock(ctx, userID, m.lockWait)
	if err != nil {
		return "", err
	}
	defer release()

	// Another request may have issued while we waited.
	existing, err = m.activeKey(ctx, userID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		m.metrics.IncKeyFetched()
		return existing.KeyValue, nil
	}

	key, err := m.insertNewKey(ctx, userID)
	if err != nil {
		return "", err
	}

	m.metrics.IncKeyIssued()
	m.logger.Info("api key issued",
		slog.String("user_id", userID),
		slog.String("key_id", key.ID),
	)
	return key.KeyValue, nil
}

// Regenerate unconditionally replaces the user's active key. The new key is
// inserted before the old ones are deactivated; if deactivation fails the new
// key is deleted so the prior state is restored.
func (m *KeyManager) Regenerate(ctx context.Context, userID string) (string, error) {
	release, err := m.lock(ctx, userID, 0)
	if err != nil {
		return "", err
	}
	defer release()

	key, err := m.insertNewKey(ctx, userID)
	if err != nil {
		return "", err
	}

	deactivated, err := m.store.DeactivateOtherAPIKeys(ctx, userID, key.ID)
	if err != nil {
		m.metrics.IncRotationFailure(metrics.StageDeactivate)
		m.compensate(ctx, key)
		return "", fmt.Errorf("%w: %w", ErrKeyRotationFailed, err)
	}

	m.invalidate(ctx, userID)
	m.metrics.IncKeyRotated()
	m.logger.Info("api key rotated",
		slog.String("user_id", userID),
		slog.String("key_id", key.ID),
		slog.Int64("deactivated", deactivated),
	)
	return key.KeyValue, nil
}

func (m *KeyManager) activeKey(ctx context.Context, userID string) (*model.APIKey, error) {
	key, err := m.store.GetActiveAPIKey(ctx, userID)
	if errors.Is(err, repository.ErrAPIKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return key, nil
}

func (m *KeyManager) insertNewKey(ctx context.Context, userID string) (*model.APIKey, error) {
	value, err := m.genKey()
	if err != nil {
		m.metrics.IncRotationFailure(metrics.StageCreate)
		return nil, fmt.Errorf("%w: %w", ErrKeyCreationFailed, err)
	}

	key := &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    userID,
		KeyValue:  value,
		IsActive:  true,
		CreatedAt: m.now(),
	}
	if err := m.store.CreateAPIKey(ctx, key); err != nil {
		m.metrics.IncRotationFailure(metrics.StageCreate)
		return nil, fmt.Errorf("%w: %w", ErrKeyCreationFailed, err)
	}
	return key, nil
}

// compensate deletes a key whose rotation could not complete. It runs even if
// the request context was cancelled.
func (m *KeyManager) compensate(ctx context.Context, key *model.APIKey) {
	ctx = context.WithoutCancel(ctx)
	if err := m.store.DeleteAPIKey(ctx, key.ID); err != nil {
		m.metrics.IncRotationFailure(metrics.StageCompensate)
		m.logger.Error("failed to delete api key after rotation failure",
			slog.String("user_id", key.UserID),
			slog.String("key_id", key.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	m.logger.Warn("api key rotation rolled back",
		slog.String("user_id", key.UserID),
		slog.String("key_id", key.ID),
	)
}

func (m *KeyManager) invalidate(ctx context.Context, userID string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.InvalidateUserKeys(ctx, userID); err != nil {
		m.logger.Warn("failed to invalidate cached api keys",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// lock takes the per-user key lock, polling for up to wait. A lock backend
// failure is logged and the operation proceeds unserialized.
func (m *KeyManager) lock(ctx context.Context, userID string, wait time.Duration) (func(), error) {
	noop := func() {}
	if m.locker == nil {
		return noop, nil
	}

	name := "apikey:" + userID
	deadline := time.Now().Add(wait)
	for {
		release, err := m.locker.Acquire(ctx, name, m.lockTTL)
		if err == nil {
			return func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					m.logger.Warn("failed to release api key lock",
						slog.String("user_id", userID),
						slog.String("error", err.Error()),
					)
				}
			}, nil
		}
		if !errors.Is(err, cache.ErrLockHeld) {
			m.logger.Warn("api key lock unavailable, continuing without it",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return noop, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrKeyOperationInProgress
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
