// Package reconciliation re-syncs payments left in an unsettled state with
// their providers.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/openbillingstore/billing-core/internal/payments"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/logger"
)

const (
	JobName = "payment-reconciliation"

	defaultStaleAfter = 15 * time.Minute
	defaultBatchSize  = 100
)

type staleReader interface {
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error)
}

type syncer interface {
	SyncPayment(ctx context.Context, paymentID string) payments.Result
}

// JobParams configures the reconciliation job.
type JobParams struct {
	Logger     *logger.Logger
	Payments   staleReader
	Syncer     syncer
	StaleAfter time.Duration
	BatchSize  int
	Now        func() time.Time
}

// Summary counts what one run did.
type Summary struct {
	Scanned   int
	Changed   int
	Unchanged int
	Failed    int
}

// Job loads PENDING and PROCESSING payments older than the stale window and
// asks their provider for the current state.
type Job struct {
	logg       *logger.Logger
	payments   staleReader
	syncer     syncer
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
}

func NewJob(params JobParams) (*Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("payment syncer required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Job{
		logg:       params.Logger,
		payments:   params.Payments,
		syncer:     params.Syncer,
		staleAfter: staleAfter,
		batchSize:  batch,
		now:        now,
	}, nil
}

func (j *Job) Name() string { return JobName }

func (j *Job) Run(ctx context.Context) error {
	_, err := j.Reconcile(ctx)
	return err
}

// Reconcile runs one bounded pass. Provider failures are counted and logged;
// the returned error carries the lookup failure or the combined sync errors.
func (j *Job) Reconcile(ctx context.Context) (Summary, error) {
	var summary Summary
	cutoff := j.now().UTC().Add(-j.staleAfter)
	stale, err := j.payments.ListStale(ctx, cutoff, j.batchSize)
	if err != nil {
		return summary, fmt.Errorf("list stale payments: %w", err)
	}

	var errs error
	for _, payment := range stale {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		summary.Scanned++
		res := j.syncer.SyncPayment(ctx, payment.PaymentID)
		logCtx := j.logg.WithPaymentID(j.logg.WithProvider(ctx, payment.PaymentGateway), payment.PaymentID)
		if !res.Success {
			summary.Failed++
			j.logg.Warn(j.logg.WithFields(logCtx, map[string]any{
				"error_code":    res.ErrorCode,
				"error_message": res.ErrorMessage,
			}), "payment reconciliation failed")
			if res.ErrorCode == payments.CodeInternal {
				errs = multierr.Append(errs, fmt.Errorf("sync %s: %s", payment.PaymentID, res.ErrorMessage))
			}
			continue
		}
		if res.Status != string(payment.Status) {
			summary.Changed++
			j.logg.Info(j.logg.WithFields(logCtx, map[string]any{"from": payment.Status, "to": res.Status}), "payment reconciled")
			continue
		}
		summary.Unchanged++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned":   summary.Scanned,
		"changed":   summary.Changed,
		"unchanged": summary.Unchanged,
		"failed":    summary.Failed,
		"cutoff":    cutoff,
	}), "payment reconciliation pass complete")
	return summary, errs
}
