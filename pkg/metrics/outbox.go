package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutboxOutcomePublished  = "published"
	OutboxOutcomeRetry      = "retry"
	OutboxOutcomeDeadLetter = "dead_letter"
)

// OutboxMetrics records the relay of billing events to Pub/Sub.
type OutboxMetrics struct {
	events *prometheus.CounterVec
	lag    *prometheus.HistogramVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_outbox_events_total",
		Help: "Outbox rows handled by the relay, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	lag := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_outbox_publish_lag_seconds",
		Help:    "Time between the outbox commit and a successful publish.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"event_type"})
	reg.MustRegister(events, lag)
	return &OutboxMetrics{events: events, lag: lag}
}

func (o *OutboxMetrics) Observe(eventType, outcome string) {
	if o == nil || o.events == nil {
		return
	}
	o.events.WithLabelValues(jobLabel(eventType), jobLabel(outcome)).Inc()
}

// ObserveLag records how long a published row waited in the outbox.
func (o *OutboxMetrics) ObserveLag(eventType string, lag time.Duration) {
	if o == nil || o.lag == nil || lag < 0 {
		return
	}
	o.lag.WithLabelValues(jobLabel(eventType)).Observe(lag.Seconds())
}
