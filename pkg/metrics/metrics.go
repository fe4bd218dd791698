package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics for the call pipeline.
type Metrics struct {
	CallsInitiated     prometheus.Counter
	WebhookEvents      *prometheus.CounterVec
	InvalidTransitions prometheus.Counter
	Classifications    *prometheus.CounterVec
	CallDuration       prometheus.Histogram
	ErrorsCount        *prometheus.CounterVec
}

// New registers and returns the metric set. Call once per process.
func New(namespace string) *Metrics {
	return &Metrics{
		CallsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_initiated_total",
			Help:      "The total number of outbound availability calls placed",
		}),
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "The total number of provider webhook events ingested",
		}, []string{"type"}),
		InvalidTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_transitions_total",
			Help:      "The total number of out-of-order or unknown events ignored",
		}),
		Classifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "The total number of transcript classifications by outcome",
		}, []string{"outcome"}),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Reported duration of completed calls",
			Buckets:   prometheus.DefBuckets,
		}),
		ErrorsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
