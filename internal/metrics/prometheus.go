package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "zeenbase"

// PrometheusRecorder exports Recorder events to a Prometheus registry.
type PrometheusRecorder struct {
	keyEvents        *prometheus.CounterVec
	rotationFailures *prometheus.CounterVec
	policyDenials    *prometheus.CounterVec
	searches         *prometheus.CounterVec
	searchDuration   prometheus.Histogram
	billingEvents    *prometheus.CounterVec
}

// NewPrometheus registers the application metrics on registry.
func NewPrometheus(registry *prometheus.Registry) *PrometheusRecorder {
	factory := promauto.With(registry)

	return &PrometheusRecorder{
		keyEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_key_events_total",
				Help:      "API key operations by kind (issued, fetched, rotated).",
			},
			[]string{"kind"},
		),
		rotationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_key_rotation_failures_total",
				Help:      "Failed API key rotations by the step that failed.",
			},
			[]string{"stage"},
		),
		policyDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_policy_denials_total",
				Help:      "Access policy denials by reason.",
			},
			[]string{"reason"},
		),
		searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Search requests by route and outcome.",
			},
			[]string{"route", "outcome"},
		),
		searchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_backend_duration_seconds",
				Help:      "Latency of calls to the search backend.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms .. 12.8s
			},
		),
		billingEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "billing_events_total",
				Help:      "Processed billing events by provider and kind.",
			},
			[]string{"provider", "kind"},
		),
	}
}

func (p *PrometheusRecorder) IncKeyIssued()  { p.keyEvents.WithLabelValues("issued").Inc() }
func (p *PrometheusRecorder) IncKeyFetched() { p.keyEvents.WithLabelValues("fetched").Inc() }
func (p *PrometheusRecorder) IncKeyRotated() { p.keyEvents.WithLabelValues("rotated").Inc() }

func (p *PrometheusRecorder) IncRotationFailure(stage string) {
	p.rotationFailures.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncPolicyDenied(reason string) {
	p.policyDenials.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncSearch(route, outcome string) {
	p.searches.WithLabelValues(route, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveSearchDuration(duration time.Duration) {
	p.searchDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncBillingEvent(provider, kind string) {
	p.billingEvents.WithLabelValues(provider, kind).Inc()
}
