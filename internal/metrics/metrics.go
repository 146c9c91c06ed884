// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Rotation failure stages.
const (
	StageCreate     = "create"
	StageDeactivate = "deactivate"
	StageCompensate = "compensate"
)

// Search outcomes.
const (
	SearchOK      = "ok"
	SearchMasked  = "masked"
	SearchError   = "error"
	SearchLimited = "rate_limited"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// API key lifecycle
	IncKeyIssued()
	IncKeyFetched()
	IncKeyRotated()
	IncRotationFailure(stage string)

	// Access policy
	IncPolicyDenied(reason string)

	// Search proxy; route is "session" or "api".
	IncSearch(route, outcome string)
	ObserveSearchDuration(duration time.Duration)

	// Billing; provider is "stripe" or "paypal".
	IncBillingEvent(provider, kind string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
