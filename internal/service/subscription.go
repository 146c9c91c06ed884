package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
)

// SubscriptionStore is the subscription lookup plus profile bookkeeping.
type SubscriptionStore interface {
	GetSubscriptionByUserID(ctx context.Context, userID string) (*model.Subscription, error)
	UpsertProfile(ctx context.Context, id, email string) error
}

// SubscriptionService answers "is this user subscribed".
type SubscriptionService struct {
	store  SubscriptionStore
	logger *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(store SubscriptionStore, logger *slog.Logger) *SubscriptionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionService{store: store, logger: logger}
}

// Status returns the caller's active subscription, if any. It also records
// the caller's email so admin listings can show it.
func (s *SubscriptionService) Status(ctx context.Context, id model.Identity) (*model.SubscriptionStatusResponse, error) {
	if id.Email != "" {
		if err := s.store.UpsertProfile(ctx, id.ID, id.Email); err != nil {
			s.logger.Warn("failed to record profile",
				slog.String("user_id", id.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	sub, err := s.store.GetSubscriptionByUserID(ctx, id.ID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return &model.SubscriptionStatusResponse{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch subscription: %w", err)
	}
	if !sub.IsActive() {
		return &model.SubscriptionStatusResponse{}, nil
	}

	return &model.SubscriptionStatusResponse{Subscribed: true, Subscription: sub}, nil
}

// AdminStore is the data the admin console reads and toggles.
type AdminStore interface {
	ListSubscriptionsWithEmail(ctx context.Context) ([]*model.SubscriptionWithEmail, error)
	ToggleAPIAccess(ctx context.Context, userID string) (*model.Subscription, error)
	ToggleSubscriptionStatus(ctx context.Context, userID string) (*model.Subscription, error)
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	GetFeedbackSummary(ctx context.Context) (model.FeedbackSummary, error)
}

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	Service     string                `json:"service"`
	Version     string                `json:"version"`
	Timestamp   time.Time             `json:"timestamp"`
	Users       int                   `json:"users"`
	ActiveUsers int                   `json:"active_users"`
	APIUsers    int                   `json:"api_users"`
	Feedback    model.FeedbackSummary `json:"feedback"`
}

// AdminService implements the admin console operations.
type AdminService struct {
	store   AdminStore
	logger  *slog.Logger
	version string
}

// NewAdminService creates a new AdminService.
func NewAdminService(store AdminStore, logger *slog.Logger, version string) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{store: store, logger: logger, version: version}
}

// ListUsers returns every subscription with its owner's email.
func (s *AdminService) ListUsers(ctx context.Context) ([]*model.SubscriptionWithEmail, error) {
	return s.store.ListSubscriptionsWithEmail(ctx)
}

// ToggleAPIAccess flips a user's api_access flag.
func (s *AdminService) ToggleAPIAccess(ctx context.Context, actor, userID string) (*model.Subscription, error) {
	sub, err := s.store.ToggleAPIAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("api access toggled",
		slog.String("admin_id", actor),
		slog.String("user_id", userID),
		slog.Bool("api_access", sub.APIAccess),
	)
	return sub, nil
}

// ToggleStatus flips a user's subscription between active and inactive.
func (s *AdminService) ToggleStatus(ctx context.Context, actor, userID string) (*model.Subscription, error) {
	sub, err := s.store.ToggleSubscriptionStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("subscription status toggled",
		slog.String("admin_id", actor),
		slog.String("user_id", userID),
		slog.String("status", string(sub.Status)),
	)
	return sub, nil
}

// ListUserKeys returns a user's key history with values masked.
func (s *AdminService) ListUserKeys(ctx context.Context, userID string) ([]model.APIKeyResponse, error) {
	keys, err := s.store.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.ToResponse())
	}
	return out, nil
}

// Stats summarizes users and feedback.
func (s *AdminService) Stats(ctx context.Context) (*AdminStats, error) {
	users, err := s.store.ListSubscriptionsWithEmail(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	feedback, err := s.store.GetFeedbackSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("feedback summary: %w", err)
	}

	stats := &AdminStats{
		Service:   "zeenbase",
		Version:   s.version,
		Timestamp: time.Now().UTC(),
		Users:     len(users),
		Feedback:  feedback,
	}
	for _, u := range users {
		if u.IsActive() {
			stats.ActiveUsers++
		}
		if u.GrantsAPIAccess() {
			stats.APIUsers++
		}
	}
	return stats, nil
}
