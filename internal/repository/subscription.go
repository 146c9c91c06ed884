package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zeenbase/zeenbase/internal/model"
)

// Common errors for subscription repository operations.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

const subscriptionColumns = `user_id, plan_type, status, api_access, current_period_end,
	COALESCE(stripe_subscription_id, ''), created_at, updated_at`

// GetSubscriptionByUserID returns the user's subscription regardless of status.
func (r *Repository) GetSubscriptionByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
	`

	return scanSubscription(r.pool.QueryRow(ctx, query, userID))
}

// UpsertSubscription creates or replaces the billing fields of a subscription.
// api_access is taken from sub on insert. On update it is preserved, except
// that moving onto an API plan from a non-API plan grants it.
func (r *Repository) UpsertSubscription(ctx context.Context, sub *model.Subscription) (*model.Subscription, error) {
	return upsertSubscription(ctx, r.pool, sub)
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func upsertSubscription(ctx context.Context, q rowQuerier, sub *model.Subscription) (*model.Subscription, error) {
	query := `
		INSERT INTO subscriptions (user_id, plan_type, status, api_access, current_period_end, stripe_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
			api_access = CASE
				WHEN subscriptions.plan_type NOT IN ('pro', 'lifetime')
					AND EXCLUDED.plan_type IN ('pro', 'lifetime') THEN true
				ELSE subscriptions.api_access
			END,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + subscriptionColumns

	row := q.QueryRow(ctx, query,
		sub.UserID,
		sub.PlanType,
		sub.Status,
		sub.APIAccess,
		sub.CurrentPeriodEnd,
		sub.StripeSubscriptionID,
		time.Now(),
	)

	out, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return out, nil
}

// UpdateSubscriptionByStripeID applies a provider status change.
func (r *Repository) UpdateSubscriptionByStripeID(ctx context.Context, stripeID string, status model.SubscriptionStatus, periodEnd *time.Time) error {
	query := `
		UPDATE subscriptions
		SET status = $2, current_period_end = $3, updated_at = $4
		WHERE stripe_subscription_id = $1
	`

	result, err := r.pool.Exec(ctx, query, stripeID, status, periodEnd, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

// ToggleAPIAccess flips api_access atomically and returns the new row.
func (r *Repository) ToggleAPIAccess(ctx context.Context, userID string) (*model.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET api_access = NOT api_access, updated_at = $2
		WHERE user_id = $1
		RETURNING ` + subscriptionColumns

	return scanSubscription(r.pool.QueryRow(ctx, query, userID, time.Now()))
}

// ToggleSubscriptionStatus flips active and inactive atomically.
func (r *Repository) ToggleSubscriptionStatus(ctx context.Context, userID string) (*model.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET status = CASE WHEN status = 'active' THEN 'inactive' ELSE 'active' END,
			updated_at = $2
		WHERE user_id = $1
		RETURNING ` + subscriptionColumns

	return scanSubscription(r.pool.QueryRow(ctx, query, userID, time.Now()))
}

// ListSubscriptionsWithEmail lists every subscription joined to profile emails.
func (r *Repository) ListSubscriptionsWithEmail(ctx context.Context) ([]*model.SubscriptionWithEmail, error) {
	query := `
		SELECT s.user_id, s.plan_type, s.status, s.api_access, s.current_period_end,
			COALESCE(s.stripe_subscription_id, ''), s.created_at, s.updated_at,
			COALESCE(p.email, '')
		FROM subscriptions s
		LEFT JOIN profiles p ON p.id = s.user_id
		ORDER BY s.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*model.SubscriptionWithEmail
	for rows.Next() {
		var s model.SubscriptionWithEmail
		if err := rows.Scan(
			&s.UserID,
			&s.PlanType,
			&s.Status,
			&s.APIAccess,
			&s.CurrentPeriodEnd,
			&s.StripeSubscriptionID,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription

	err := row.Scan(
		&s.UserID,
		&s.PlanType,
		&s.Status,
		&s.APIAccess,
		&s.CurrentPeriodEnd,
		&s.StripeSubscriptionID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}

	return &s, nil
}
