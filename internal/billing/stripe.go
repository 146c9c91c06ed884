package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/zeenbase/zeenbase/internal/model"
)

// Stripe wraps the Stripe API client.
type Stripe struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

// NewStripe creates a Stripe adapter for the given secret key.
func NewStripe(secretKey, webhookSecret string, logger *slog.Logger) *Stripe {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return newStripe(sc, webhookSecret, logger)
}

func newStripe(api *client.API, webhookSecret string, logger *slog.Logger) *Stripe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stripe{api: api, webhookSecret: webhookSecret, logger: logger}
}

// CreateCheckoutSession creates a hosted checkout page and returns its URL.
// Recurring prices open a subscription checkout, others a one-time payment.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	price, err := s.api.Prices.Get(req.PriceID, &stripe.PriceParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		s.logError("GetPrice", err)
		return "", fmt.Errorf("%w: get price: %w", ErrProvider, err)
	}

	mode := stripe.CheckoutSessionModePayment
	if price.Type == stripe.PriceTypeRecurring {
		mode = stripe.CheckoutSessionModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.Origin + "/"),
		CancelURL:         stripe.String(req.Origin + "/product"),
		ClientReferenceID: stripe.String(req.UserID),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		s.logError("CreateCheckoutSession", err)
		return "", fmt.Errorf("%w: create checkout session: %w", ErrProvider, err)
	}

	s.logger.Info("stripe checkout session created",
		slog.String("user_id", req.UserID),
		slog.String("session_id", sess.ID),
		slog.String("mode", string(mode)),
	)
	return sess.URL, nil
}

// GetSubscription fetches a subscription by id.
func (s *Stripe) GetSubscription(ctx context.Context, id string) (*SubscriptionInfo, error) {
	sub, err := s.api.Subscriptions.Get(id, &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		s.logError("GetSubscription", err)
		return nil, fmt.Errorf("%w: get subscription: %w", ErrProvider, err)
	}
	return subscriptionInfo(sub), nil
}

// ParseEvent verifies a webhook payload against its Stripe-Signature header.
func (s *Stripe) ParseEvent(payload []byte, signature string) (*Event, error) {
	return parseStripeEvent(payload, signature, s.webhookSecret)
}

func parseStripeEvent(payload []byte, signature, secret string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.UserID = sess.ClientReferenceID
		out.OneTime = sess.Mode == stripe.CheckoutSessionModePayment
		if sess.CustomerDetails != nil {
			out.Email = sess.CustomerDetails.Email
		}
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.Subscription = subscriptionInfo(&sub)
		if out.Type == EventSubscriptionDeleted {
			out.Subscription.Status = model.StatusInactive
		}
	}

	return out, nil
}

func subscriptionInfo(sub *stripe.Subscription) *SubscriptionInfo {
	info := &SubscriptionInfo{
		ID:        sub.ID,
		Status:    MapStripeStatus(sub.Status),
		PeriodEnd: unixTime(sub.CurrentPeriodEnd),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		info.PriceID = sub.Items.Data[0].Price.ID
	}
	return info
}

// MapStripeStatus collapses Stripe's statuses onto active and inactive.
func MapStripeStatus(status stripe.SubscriptionStatus) model.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return model.StatusActive
	default:
		return model.StatusInactive
	}
}

func (s *Stripe) logError(operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		s.logger.Error("stripe api error",
			slog.String("operation", operation),
			slog.String("type", string(stripeErr.Type)),
			slog.String("code", string(stripeErr.Code)),
			slog.String("request_id", stripeErr.RequestID),
			slog.Int("status_code", stripeErr.HTTPStatusCode),
		)
		return
	}
	s.logger.Error("stripe request failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
