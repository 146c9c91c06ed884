// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zeenbase/zeenbase/internal/metrics"
	"github.com/zeenbase/zeenbase/internal/model"
	"github.com/zeenbase/zeenbase/internal/repository"
)

// DenialReason names why the access policy refused API access.
type DenialReason string

const (
	ReasonNoSubscription      DenialReason = "NoSubscription"
	ReasonPlanNotEligible     DenialReason = "PlanNotEligible"
	ReasonAPIAccessRevoked    DenialReason = "ApiAccessRevoked"
	ReasonAPIGloballyDisabled DenialReason = "ApiGloballyDisabled"
)

var denialMessages = map[DenialReason]string{
	ReasonNoSubscription:      "No active subscription found",
	ReasonPlanNotEligible:     "Subscription plan does not include API access",
	ReasonAPIAccessRevoked:    "API access not enabled",
	ReasonAPIGloballyDisabled: "API access is currently disabled",
}

// Message is the user-facing explanation for the reason.
func (r DenialReason) Message() string {
	if msg, ok := denialMessages[r]; ok {
		return msg
	}
	return "Access denied"
}

// ErrPolicyStore wraps store failures hit while evaluating the policy.
var ErrPolicyStore = errors.New("access policy store unavailable")

// Decision is the outcome of an access policy evaluation.
type Decision struct {
	Allowed bool
	IsAdmin bool
	Reason  DenialReason
}

// PolicyStore is the read side of the credential store used by the evaluator.
type PolicyStore interface {
	GetSubscriptionByUserID(ctx context.Context, userID string) (*model.Subscription, error)
	GetLatestSiteSettings(ctx context.Context) (*model.SiteSettings, error)
}

// AdminChecker decides whether an identity is an admin.
type AdminChecker interface {
	IsAdmin(id model.Identity) bool
}

// AccessPolicy decides whether a user may hold and use an API key.
type AccessPolicy struct {
	store   PolicyStore
	admins  AdminChecker
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewAccessPolicy creates a new AccessPolicy.
func NewAccessPolicy(store PolicyStore, admins AdminChecker, logger *slog.Logger, recorder metrics.Recorder) *AccessPolicy {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessPolicy{store: store, admins: admins, logger: logger, metrics: recorder}
}

// Evaluate runs the ordered policy checks for id. A non-nil error means the
// store failed and no decision was reached; denials are reported in Decision.
func (p *AccessPolicy) Evaluate(ctx context.Context, id model.Identity) (Decision, error) {
	isAdmin := p.admins.IsAdmin(id)

	if !isAdmin {
		sub, err := p.store.GetSubscriptionByUserID(ctx, id.ID)
		switch {
		case errors.Is(err, repository.ErrSubscriptionNotFound):
			return p.deny(id, ReasonNoSubscription), nil
		case err != nil:
			return Decision{}, fmt.Errorf("%w: fetch subscription: %v", ErrPolicyStore, err)
		case !sub.PlanType.AllowsAPI():
			return p.deny(id, ReasonPlanNotEligible), nil
		case !sub.APIAccess || !sub.IsActive():
			return p.deny(id, ReasonAPIAccessRevoked), nil
		}
	}

	settings, err := p.store.GetLatestSiteSettings(ctx)
	switch {
	case errors.Is(err, repository.ErrSettingsNotFound):
		// No settings row reads as api_enabled=false.
		settings = &model.SiteSettings{}
	case err != nil:
		return Decision{}, fmt.Errorf("%w: fetch site settings: %v", ErrPolicyStore, err)
	}

	if !settings.APIEnabled && !isAdmin {
		return p.deny(id, ReasonAPIGloballyDisabled), nil
	}

	return Decision{Allowed: true, IsAdmin: isAdmin}, nil
}

func (p *AccessPolicy) deny(id model.Identity, reason DenialReason) Decision {
	p.metrics.IncPolicyDenied(string(reason))
	p.logger.Info("api access denied",
		slog.String("user_id", id.ID),
		slog.String("reason", string(reason)),
	)
	return Decision{Reason: reason}
}
