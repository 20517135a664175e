package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job outcomes reported on billing_scheduler_job_runs_total.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

// SchedulerMetrics tracks the background scheduler: job runs by outcome, job
// latency, the last successful run per job and cycles skipped because another
// instance held the lock.
type SchedulerMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	skipped     prometheus.Counter
}

// NewSchedulerMetrics registers the scheduler metrics on reg. A nil reg
// yields a no-op recorder.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	if reg == nil {
		return &SchedulerMetrics{}
	}
	m := &SchedulerMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_scheduler_job_runs_total",
			Help: "Scheduled job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "billing_scheduler_job_duration_seconds",
			Help: "Duration of scheduled job runs.",
			// Reconciliation passes wait on provider round trips.
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "billing_scheduler_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_scheduler_cycles_skipped_total",
			Help: "Cycles skipped because another instance held the scheduler lock.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.skipped)
	return m
}

// ObserveJob records one run of job that took d and ended with err.
func (m *SchedulerMetrics) ObserveJob(job string, d time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = jobLabel(job)
	outcome := jobOutcome(err)
	m.runs.WithLabelValues(job, outcome).Inc()
	m.duration.WithLabelValues(job).Observe(d.Seconds())
	if outcome == OutcomeSuccess {
		m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

// IncSkipped counts a cycle that did not run because the lock was held.
func (m *SchedulerMetrics) IncSkipped() {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.Inc()
}

func jobOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeFailure
	}
}

func jobLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
