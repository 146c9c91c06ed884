package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	KeysIssued            uint64
	KeysFetched           uint64
	KeysRotated           uint64
	RotationFailures      map[string]uint64
	PolicyDenials         map[string]uint64
	Searches              map[string]uint64 // "route/outcome"
	SearchDurationCount   uint64
	SearchDurationTotalNs int64
	BillingEvents         map[string]uint64 // "provider/kind"
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	keysIssued            uint64
	keysFetched           uint64
	keysRotated           uint64
	searchDurationCount   uint64
	searchDurationTotalNs int64

	mu               sync.Mutex
	rotationFailures map[string]uint64
	policyDenials    map[string]uint64
	searches         map[string]uint64
	billingEvents    map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		rotationFailures: make(map[string]uint64),
		policyDenials:    make(map[string]uint64),
		searches:         make(map[string]uint64),
		billingEvents:    make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		KeysIssued:            atomic.LoadUint64(&m.keysIssued),
		KeysFetched:           atomic.LoadUint64(&m.keysFetched),
		KeysRotated:           atomic.LoadUint64(&m.keysRotated),
		RotationFailures:      copyMap(m.rotationFailures),
		PolicyDenials:         copyMap(m.policyDenials),
		Searches:              copyMap(m.searches),
		SearchDurationCount:   atomic.LoadUint64(&m.searchDurationCount),
		SearchDurationTotalNs: atomic.LoadInt64(&m.searchDurationTotalNs),
		BillingEvents:         copyMap(m.billingEvents),
	}
}

func (m *InMemoryRecorder) IncKeyIssued()  { atomic.AddUint64(&m.keysIssued, 1) }
func (m *InMemoryRecorder) IncKeyFetched() { atomic.AddUint64(&m.keysFetched, 1) }
func (m *InMemoryRecorder) IncKeyRotated() { atomic.AddUint64(&m.keysRotated, 1) }

// IncRotationFailure counts a failed rotation step.
func (m *InMemoryRecorder) IncRotationFailure(stage string) {
	m.inc(m.rotationFailures, stage)
}

// IncPolicyDenied counts a denial by reason.
func (m *InMemoryRecorder) IncPolicyDenied(reason string) {
	m.inc(m.policyDenials, reason)
}

// IncSearch counts a search by route and outcome.
func (m *InMemoryRecorder) IncSearch(route, outcome string) {
	m.inc(m.searches, route+"/"+outcome)
}

// ObserveSearchDuration records backend latency.
func (m *InMemoryRecorder) ObserveSearchDuration(duration time.Duration) {
	atomic.AddUint64(&m.searchDurationCount, 1)
	atomic.AddInt64(&m.searchDurationTotalNs, duration.Nanoseconds())
}

// IncBillingEvent counts a processed billing event.
func (m *InMemoryRecorder) IncBillingEvent(provider, kind string) {
	m.inc(m.billingEvents, provider+"/"+kind)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyMap(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
