package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zeenbase/zeenbase/internal/model"
)

// Feedback listing bounds.
const (
	DefaultFeedbackLimit = 50
	MaxFeedbackLimit     = 200
)

// FeedbackStore persists feedback.
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, f *model.Feedback) error
	GetFeedbackSummary(ctx context.Context) (model.FeedbackSummary, error)
	ListRecentFeedback(ctx context.Context, limit int) ([]*model.Feedback, error)
}

// FeedbackService records product ratings.
type FeedbackService struct {
	store FeedbackStore
}

// NewFeedbackService creates a new FeedbackService.
func NewFeedbackService(store FeedbackStore) *FeedbackService {
	return &FeedbackService{store: store}
}

// Submit validates and stores a rating from userID.
func (s *FeedbackService) Submit(ctx context.Context, userID string, req model.FeedbackRequest) (*model.Feedback, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	f := &model.Feedback{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateFeedback(ctx, f); err != nil {
		return nil, fmt.Errorf("store feedback: %w", err)
	}
	return f, nil
}

// Summary returns the average rating and count.
func (s *FeedbackService) Summary(ctx context.Context) (model.FeedbackSummary, error) {
	return s.store.GetFeedbackSummary(ctx)
}

// Recent returns the newest feedback, clamping limit to the allowed range.
func (s *FeedbackService) Recent(ctx context.Context, limit int) ([]*model.Feedback, error) {
	if limit <= 0 {
		limit = DefaultFeedbackLimit
	}
	if limit > MaxFeedbackLimit {
		limit = MaxFeedbackLimit
	}
	return s.store.ListRecentFeedback(ctx, limit)
}
