package repository

import (
	"context"
	"fmt"

	"github.com/zeenbase/zeenbase/internal/model"
)

// CreateFeedback inserts a feedback row.
func (r *Repository) CreateFeedback(ctx context.Context, f *model.Feedback) error {
	query := `
		INSERT INTO feedback (id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.pool.Exec(ctx, query, f.ID, f.UserID, f.Rating, f.Comment, f.CreatedAt); err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	return nil
}

// GetFeedbackSummary returns the average rating and number of ratings.
func (r *Repository) GetFeedbackSummary(ctx context.Context) (model.FeedbackSummary, error) {
	var s model.FeedbackSummary
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*) FROM feedback`).Scan(&s.Average, &s.Count)
	if err != nil {
		return model.FeedbackSummary{}, fmt.Errorf("failed to get feedback summary: %w", err)
	}

	return s, nil
}

// ListRecentFeedback returns the newest feedback rows.
func (r *Repository) ListRecentFeedback(ctx context.Context, limit int) ([]*model.Feedback, error) {
	query := `
		SELECT id, user_id, rating, comment, created_at
		FROM feedback
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var out []*model.Feedback
	for rows.Next() {
		var f model.Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.Rating, &f.Comment, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		out = append(out, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback: %w", err)
	}

	return out, nil
}
