package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncKeyIssued()                                {}
func (n *NoopRecorder) IncKeyFetched()                               {}
func (n *NoopRecorder) IncKeyRotated()                               {}
func (n *NoopRecorder) IncRotationFailure(stage string)              {}
func (n *NoopRecorder) IncPolicyDenied(reason string)                {}
func (n *NoopRecorder) IncSearch(route, outcome string)              {}
func (n *NoopRecorder) ObserveSearchDuration(duration time.Duration) {}
func (n *NoopRecorder) IncBillingEvent(provider, kind string)        {}
