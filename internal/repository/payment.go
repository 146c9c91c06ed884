package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zeenbase/zeenbase/internal/model"
)

// ErrOrderAlreadyCaptured means the PayPal order id has already been applied.
var ErrOrderAlreadyCaptured = errors.New("order already captured")

// CapturePayPalOrder records order and applies sub in one transaction. A
// second capture of the same order id fails with ErrOrderAlreadyCaptured and
// leaves the subscription untouched.
func (r *Repository) CapturePayPalOrder(ctx context.Context, order *model.PayPalOrder, sub *model.Subscription) (*model.Subscription, error) {
	var out *model.Subscription
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO paypal_orders (order_id, user_id, plan_type, amount_cents, currency, captured_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		_, err := tx.Exec(ctx, query,
			order.OrderID,
			order.UserID,
			order.PlanType,
			order.AmountCents,
			order.Currency,
			order.CapturedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrOrderAlreadyCaptured
			}
			return fmt.Errorf("failed to record paypal order: %w", err)
		}

		out, err = upsertSubscription(ctx, tx, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
