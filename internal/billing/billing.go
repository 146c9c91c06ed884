// Package billing adapts the Stripe and PayPal SDKs to the subscription model.
package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zeenbase/zeenbase/internal/model"
)

var (
	// ErrInvalidSignature means a webhook payload failed verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrOrderNotCompleted means a PayPal order has not been paid.
	ErrOrderNotCompleted = errors.New("order is not completed")
	// ErrInvalidAmount means a price or order amount could not be parsed.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrProvider wraps failures talking to a payment provider.
	ErrProvider = errors.New("payment provider error")
)

// Stripe event types handled by the webhook.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// CheckoutRequest describes a checkout session to create.
type CheckoutRequest struct {
	PriceID string
	UserID  string
	Email   string
	Origin  string
}

// SubscriptionInfo is a provider subscription reduced to what we store.
type SubscriptionInfo struct {
	ID        string
	Status    model.SubscriptionStatus
	PeriodEnd *time.Time
	PriceID   string
}

// Event is a verified webhook event.
type Event struct {
	ID   string
	Type string

	// Set for checkout.session.completed.
	UserID         string
	Email          string
	OneTime        bool
	SubscriptionID string

	// Set for customer.subscription.* events.
	Subscription *SubscriptionInfo
}

// Money is an amount in minor units of a currency.
type Money struct {
	Currency string
	Cents    int64
}

// ParseMoney parses a decimal amount such as "9.99" in the given currency.
// At most two fractional digits are accepted.
func ParseMoney(currency, value string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	whole, frac, dot := strings.Cut(strings.TrimSpace(value), ".")
	if currency == "" || !isDigits(whole) || len(frac) > 2 || (dot && !isDigits(frac)) {
		return Money{}, fmt.Errorf("%w: %q %q", ErrInvalidAmount, currency, value)
	}
	frac += strings.Repeat("0", 2-len(frac))

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)
	return Money{Currency: currency, Cents: units*100 + cents}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String formats m the way PayPal reports amounts.
func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Cents/100, m.Cents%100, m.Currency)
}

// PayPalOrder is a completed PayPal order reduced to what a capture checks.
type PayPalOrder struct {
	ID string
	// CustomID is the purchase unit's custom_id, falling back to reference_id.
	// Checkout sets it to the buyer's user id.
	CustomID string
	Amount   Money
}

// unixTime converts a provider timestamp, treating zero as unset.
func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
