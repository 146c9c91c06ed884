package model

import (
	"slices"
	"time"
)

// PlanType is a subscription tier.
type PlanType string

const (
	PlanFree     PlanType = "free"
	PlanStandard PlanType = "standard"
	PlanPro      PlanType = "pro"
	PlanLifetime PlanType = "lifetime"
)

// ValidPlans contains every known plan.
var ValidPlans = []PlanType{PlanFree, PlanStandard, PlanPro, PlanLifetime}

// APIPlans are the plans eligible for API access.
var APIPlans = []PlanType{PlanPro, PlanLifetime}

// SearchPlans are the plans that see unmasked search results.
var SearchPlans = []PlanType{PlanStandard, PlanPro, PlanLifetime}

// ParsePlanType returns the plan for s and whether it is known.
func ParsePlanType(s string) (PlanType, bool) {
	p := PlanType(s)
	return p, slices.Contains(ValidPlans, p)
}

// AllowsAPI reports whether the plan is eligible for API access.
func (p PlanType) AllowsAPI() bool {
	return slices.Contains(APIPlans, p)
}

// AllowsSearchResults reports whether the plan sees full search results.
func (p PlanType) AllowsSearchResults() bool {
	return slices.Contains(SearchPlans, p)
}

// SubscriptionStatus is the soft-disable flag of a subscription.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusInactive SubscriptionStatus = "inactive"
)

// Toggle flips active and inactive.
func (s SubscriptionStatus) Toggle() SubscriptionStatus {
	if s == StatusActive {
		return StatusInactive
	}
	return StatusActive
}

// Subscription is a user's billing plan. Rows are never deleted.
type Subscription struct {
	UserID               string             `json:"user_id"`
	PlanType             PlanType           `json:"plan_type"`
	Status               SubscriptionStatus `json:"status"`
	APIAccess            bool               `json:"api_access"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end"`
	StripeSubscriptionID string             `json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// IsActive reports whether the subscription is active.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// GrantsAPIAccess is the full API eligibility predicate.
func (s *Subscription) GrantsAPIAccess() bool {
	return s.IsActive() && s.PlanType.AllowsAPI() && s.APIAccess
}

// SubscriptionWithEmail is a subscription joined to its owner's profile.
type SubscriptionWithEmail struct {
	Subscription
	Email string `json:"email"`
}

// SubscriptionStatusResponse is the body of GET /subscription.
type SubscriptionStatusResponse struct {
	Subscribed   bool          `json:"subscribed"`
	Subscription *Subscription `json:"subscription"`
	Error        string        `json:"error,omitempty"`
}
