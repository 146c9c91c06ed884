package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/zeenbase/zeenbase/internal/billing"
	"github.com/zeenbase/zeenbase/internal/metrics"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
)

// Billing errors.
var (
	ErrBillingDisabled = errors.New("payment provider is not configured")
	ErrInvalidPriceID  = errors.New("price_id is required")
	ErrInvalidPlan     = errors.New("plan must be one of standard, pro or lifetime")
	ErrInvalidOrderID  = errors.New("order_id is required")
	ErrPaymentFailed   = errors.New("payment could not be verified")

	ErrOrderNotOwned        = errors.New("order was not placed by this user")
	ErrOrderAmountMismatch  = errors.New("order amount does not match the plan price")
	ErrOrderAlreadyCaptured = errors.New("order has already been captured")
)

// PayPalPeriod is how long a PayPal payment keeps a non-lifetime plan active.
const PayPalPeriod = 30 * 24 * time.Hour

// StripeGateway is the Stripe operations billing needs.
type StripeGateway interface {
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (string, error)
	GetSubscription(ctx context.Context, id string) (*billing.SubscriptionInfo, error)
	ParseEvent(payload []byte, signature string) (*billing.Event, error)
}

// PayPalGateway verifies PayPal orders.
type PayPalGateway interface {
	VerifyOrder(ctx context.Context, orderID string) (*billing.PayPalOrder, error)
}

// BillingStore writes subscriptions from payment events.
type BillingStore interface {
	UpsertSubscription(ctx context.Context, sub *model.Subscription) (*model.Subscription, error)
	UpdateSubscriptionByStripeID(ctx context.Context, stripeID string, status model.SubscriptionStatus, periodEnd *time.Time) error
	UpsertProfile(ctx context.Context, id, email string) error
	CapturePayPalOrder(ctx context.Context, order *model.PayPalOrder, sub *model.Subscription) (*model.Subscription, error)
}

// BillingConfig configures a BillingService.
type BillingConfig struct {
	Store   BillingStore
	Stripe  StripeGateway // nil disables Stripe
	PayPal  PayPalGateway // nil disables PayPal
	Logger  *slog.Logger
	Metrics metrics.Recorder

	// Price ids that map to plans other than standard.
	ProPriceIDs      []string
	LifetimePriceIDs []string

	// PayPalPrices is what each plan costs through PayPal. Plans without a
	// price cannot be bought that way.
	PayPalPrices map[model.PlanType]billing.Money
}

// BillingService turns payments into subscriptions.
type BillingService struct {
	store      BillingStore
	stripe     StripeGateway
	paypal     PayPalGateway
	logger     *slog.Logger
	metrics    metrics.Recorder
	proPrices  []string
	lifePrices []string
	ppPrices   map[model.PlanType]billing.Money
	now        func() time.Time
}

// NewBillingService creates a new BillingService.
func NewBillingService(cfg BillingConfig) *BillingService {
	s := &BillingService{
		store:      cfg.Store,
		stripe:     cfg.Stripe,
		paypal:     cfg.PayPal,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		proPrices:  cfg.ProPriceIDs,
		lifePrices: cfg.LifetimePriceIDs,
		ppPrices:   cfg.PayPalPrices,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoop()
	}
	return s
}

// StripeEnabled reports whether Stripe is configured.
func (s *BillingService) StripeEnabled() bool {
	return s.stripe != nil
}

// Checkout creates a Stripe checkout session for the caller.
func (s *BillingService) Checkout(ctx context.Context, id model.Identity, priceID, origin string) (string, error) {
	if s.stripe == nil {
		return "", ErrBillingDisabled
	}
	if priceID == "" {
		return "", ErrInvalidPriceID
	}

	url, err := s.stripe.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		PriceID: priceID,
		UserID:  id.ID,
		Email:   id.Email,
		Origin:  origin,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	s.metrics.IncBillingEvent("stripe", "checkout_created")
	return url, nil
}

// HandleStripeWebhook verifies and applies a Stripe event. Events for
// unknown users or subscriptions are acknowledged and dropped.
func (s *BillingService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.stripe == nil {
		return ErrBillingDisabled
	}

	ev, err := s.stripe.ParseEvent(payload, signature)
	if err != nil {
		return err
	}

	s.logger.Info("stripe event received",
		slog.String("event_id", ev.ID),
		slog.String("event_type", ev.Type),
	)

	switch ev.Type {
	case billing.EventCheckoutCompleted:
		err = s.applyCheckout(ctx, ev)
	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		err = s.applySubscriptionChange(ctx, ev)
	default:
		s.metrics.IncBillingEvent("stripe", "ignored")
		return nil
	}
	if err != nil {
		return err
	}

	s.metrics.IncBillingEvent("stripe", ev.Type)
	return nil
}

func (s *BillingService) applyCheckout(ctx context.Context, ev *billing.Event) error {
	if ev.UserID == "" {
		s.logger.Warn("checkout session without client reference", slog.String("event_id", ev.ID))
		return nil
	}

	sub := &model.Subscription{
		UserID: ev.UserID,
		Status: model.StatusActive,
	}

	switch {
	case ev.OneTime:
		sub.PlanType = model.PlanLifetime
	case ev.SubscriptionID != "":
		info, err := s.stripe.GetSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return err
		}
		sub.PlanType = s.planForPrice(info.PriceID)
		sub.Status = info.Status
		sub.CurrentPeriodEnd = info.PeriodEnd
		sub.StripeSubscriptionID = info.ID
	default:
		s.logger.Warn("checkout session without subscription", slog.String("event_id", ev.ID))
		return nil
	}
	sub.APIAccess = sub.PlanType.AllowsAPI()

	if ev.Email != "" {
		if err := s.store.UpsertProfile(ctx, ev.UserID, ev.Email); err != nil {
			s.logger.Warn("failed to record profile", slog.String("user_id", ev.UserID), slog.String("error", err.Error()))
		}
	}

	saved, err := s.store.UpsertSubscription(ctx, sub)
	if err != nil {
		return err
	}

	s.logger.Info("subscription saved from checkout",
		slog.String("user_id", saved.UserID),
		slog.String("plan_type", string(saved.PlanType)),
		slog.String("status", string(saved.Status)),
	)
	return nil
}

func (s *BillingService) applySubscriptionChange(ctx context.Context, ev *billing.Event) error {
	if ev.Subscription == nil || ev.Subscription.ID == "" {
		s.logger.Warn("subscription event without subscription id", slog.String("event_id", ev.ID))
		return nil
	}

	info := ev.Subscription
	err := s.store.UpdateSubscriptionByStripeID(ctx, info.ID, info.Status, info.PeriodEnd)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		s.logger.Warn("stripe subscription not found locally",
			slog.String("event_id", ev.ID),
			slog.String("stripe_subscription_id", info.ID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("subscription updated from stripe",
		slog.String("stripe_subscription_id", info.ID),
		slog.String("status", string(info.Status)),
	)
	return nil
}

func (s *BillingService) planForPrice(priceID string) model.PlanType {
	switch {
	case slices.Contains(s.lifePrices, priceID):
		return model.PlanLifetime
	case slices.Contains(s.proPrices, priceID):
		return model.PlanPro
	default:
		return model.PlanStandard
	}
}

// CapturePayPal activates plan for the caller once PayPal reports the order
// as completed, placed by the caller and paid at the plan's price. Each order
// id activates a plan once.
func (s *BillingService) CapturePayPal(ctx context.Context, id model.Identity, orderID, plan string) (*model.Subscription, error) {
	if s.paypal == nil {
		return nil, ErrBillingDisabled
	}
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	planType, ok := model.ParsePlanType(plan)
	if !ok || planType == model.PlanFree {
		return nil, ErrInvalidPlan
	}
	price, ok := s.ppPrices[planType]
	if !ok {
		return nil, ErrInvalidPlan
	}

	log := s.logger.With(slog.String("user_id", id.ID), slog.String("order_id", orderID))

	order, err := s.paypal.VerifyOrder(ctx, orderID)
	if err != nil {
		s.metrics.IncBillingEvent("paypal", "verify_failed")
		log.Warn("paypal order verification failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	if order.CustomID != id.ID {
		s.metrics.IncBillingEvent("paypal", "not_owned")
		log.Warn("paypal order placed for another user", slog.String("order_user_id", order.CustomID))
		return nil, ErrOrderNotOwned
	}
	if order.Amount != price {
		s.metrics.IncBillingEvent("paypal", "amount_mismatch")
		log.Warn("paypal order amount does not match plan",
			slog.String("plan_type", string(planType)),
			slog.String("paid", order.Amount.String()),
			slog.String("price", price.String()),
		)
		return nil, ErrOrderAmountMismatch
	}

	now := s.now()
	sub := &model.Subscription{
		UserID:    id.ID,
		PlanType:  planType,
		Status:    model.StatusActive,
		APIAccess: planType.AllowsAPI(),
	}
	if planType != model.PlanLifetime {
		end := now.Add(PayPalPeriod)
		sub.CurrentPeriodEnd = &end
	}

	record := &model.PayPalOrder{
		OrderID:     orderID,
		UserID:      id.ID,
		PlanType:    planType,
		AmountCents: order.Amount.Cents,
		Currency:    order.Amount.Currency,
		CapturedAt:  now,
	}
	saved, err := s.store.CapturePayPalOrder(ctx, record, sub)
	if errors.Is(err, repository.ErrOrderAlreadyCaptured) {
		s.metrics.IncBillingEvent("paypal", "replayed")
		log.Warn("paypal order already captured")
		return nil, ErrOrderAlreadyCaptured
	}
	if err != nil {
		return nil, err
	}

	if id.Email != "" {
		if err := s.store.UpsertProfile(ctx, id.ID, id.Email); err != nil {
			log.Warn("failed to record profile", slog.String("error", err.Error()))
		}
	}

	s.metrics.IncBillingEvent("paypal", "captured")
	log.Info("subscription saved from paypal", slog.String("plan_type", string(planType)))
	return saved, nil
}
