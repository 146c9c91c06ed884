package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/plutov/paypal/v4"
)

// orderStatusCompleted is PayPal's status for a captured order.
const orderStatusCompleted = "COMPLETED"

// PayPal verifies orders captured by the browser checkout.
type PayPal struct {
	client *paypal.Client

	mu       sync.Mutex
	hasToken bool
}

// NewPayPal creates a PayPal adapter.
func NewPayPal(clientID, secret string, sandbox bool) (*PayPal, error) {
	base := paypal.APIBaseLive
	if sandbox {
		base = paypal.APIBaseSandBox
	}
	c, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("create paypal client: %w", err)
	}
	return &PayPal{client: c}, nil
}

// VerifyOrder checks that orderID exists and has been captured, and returns
// the buyer reference and amount of its first purchase unit.
func (p *PayPal) VerifyOrder(ctx context.Context, orderID string) (*PayPalOrder, error) {
	if err := p.ensureToken(ctx); err != nil {
		return nil, err
	}

	order, err := p.client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: get order: %w", ErrProvider, err)
	}
	if order.Status != orderStatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrOrderNotCompleted, order.Status)
	}
	return orderFromPayPal(order)
}

func orderFromPayPal(order *paypal.Order) (*PayPalOrder, error) {
	if len(order.PurchaseUnits) == 0 || order.PurchaseUnits[0].Amount == nil {
		return nil, fmt.Errorf("%w: order %s has no amount", ErrInvalidAmount, order.ID)
	}
	unit := order.PurchaseUnits[0]
	amount, err := ParseMoney(unit.Amount.Currency, unit.Amount.Value)
	if err != nil {
		return nil, err
	}

	ref := unit.CustomID
	if ref == "" {
		ref = unit.ReferenceID
	}
	return &PayPalOrder{ID: order.ID, CustomID: ref, Amount: amount}, nil
}

// ensureToken fetches the first access token; the SDK refreshes it afterwards.
func (p *PayPal) ensureToken(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasToken {
		return nil
	}
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return fmt.Errorf("%w: paypal auth: %w", ErrProvider, err)
	}
	p.hasToken = true
	return nil
}
