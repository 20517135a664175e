package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestGatewayMetricsLabelsByProviderOperationOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGatewayMetrics(reg)
	m.Observe("STRIPE", "create_payment", GatewayOutcomeSuccess, 120*time.Millisecond)
	m.Observe("STRIPE", "create_payment", GatewayOutcomeSuccess, 80*time.Millisecond)
	m.Observe("PAYPAL", "refund_payment", GatewayOutcomeTimeout, 15*time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	family := findMetricFamily(mfs, "billing_gateway_requests_total")
	if family == nil {
		t.Fatal("requests counter not exported")
	}
	var stripeSuccess, paypalTimeout float64
	for _, metric := range family.GetMetric() {
		labels := metric.GetLabel()
		switch {
		case matchesLabel(labels, "provider", "STRIPE") && matchesLabel(labels, "outcome", GatewayOutcomeSuccess):
			stripeSuccess = metric.GetCounter().GetValue()
		case matchesLabel(labels, "provider", "PAYPAL") && matchesLabel(labels, "outcome", GatewayOutcomeTimeout):
			paypalTimeout = metric.GetCounter().GetValue()
		}
	}
	if stripeSuccess != 2 || paypalTimeout != 1 {
		t.Fatalf("unexpected counters stripe=%f paypal=%f", stripeSuccess, paypalTimeout)
	}

	if got, err := fetchHistogramSum(mfs, "billing_gateway_request_duration_seconds", "operation", "refund_payment"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 15 {
		t.Fatalf("expected 15s observed, got %f", got)
	}
}

func TestGatewayMetricsNilSafe(t *testing.T) {
	var m *GatewayMetrics
	m.Observe("STRIPE", "x", GatewayOutcomeFailure, time.Second)
	NewGatewayMetrics(nil).Observe("", "", "", 0)
}
