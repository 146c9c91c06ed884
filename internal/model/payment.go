package model

import "time"

// PayPalOrder records a PayPal order that has been applied to a subscription.
// An order id is consumed at most once.
type PayPalOrder struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	PlanType    PlanType  `json:"plan_type"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CapturedAt  time.Time `json:"captured_at"`
}
