package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	GatewayOutcomeSuccess = "success"
	GatewayOutcomeFailure = "failure"
	GatewayOutcomeTimeout = "timeout"
)

// GatewayMetrics records payment provider calls.
type GatewayMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_gateway_requests_total",
		Help: "Payment provider calls by outcome.",
	}, []string{"provider", "operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_gateway_request_duration_seconds",
		Help:    "Latency of payment provider calls in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider", "operation"})
	reg.MustRegister(requests, duration)
	return &GatewayMetrics{requests: requests, duration: duration}
}

// Observe records one call.
func (g *GatewayMetrics) Observe(provider, operation, outcome string, elapsed time.Duration) {
	if g == nil {
		return
	}
	provider = jobLabel(provider)
	operation = jobLabel(operation)
	if g.requests != nil {
		g.requests.WithLabelValues(provider, operation, jobLabel(outcome)).Inc()
	}
	if g.duration != nil {
		g.duration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
	}
}
