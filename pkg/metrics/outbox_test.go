package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Observe("payment_status_changed", OutboxOutcomePublished)
	m.Observe("payment_status_changed", OutboxOutcomePublished)
	m.Observe("order_created", OutboxOutcomeDeadLetter)
	m.ObserveLag("payment_status_changed", 3*time.Second)
	m.ObserveLag("payment_status_changed", -time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "billing_outbox_events_total", "outcome", OutboxOutcomePublished); err != nil || got != 2 {
		t.Fatalf("published counter = %f, err %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "billing_outbox_events_total", "event_type", "order_created"); err != nil || got != 1 {
		t.Fatalf("dead letter counter = %f, err %v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "billing_outbox_publish_lag_seconds", "event_type", "payment_status_changed"); err != nil || got != 3 {
		t.Fatalf("lag sum = %f, err %v", got, err)
	}
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.Observe("x", OutboxOutcomeRetry)
	m.ObserveLag("x", time.Second)
}
