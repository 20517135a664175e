package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/internal/catalog"
	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/internal/gateway/gatewaytest"
	"github.com/openbillingstore/billing-core/internal/orders"
	"github.com/openbillingstore/billing-core/internal/payments"
	"github.com/openbillingstore/billing-core/internal/subscriptions"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/dbtest"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/outbox"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "reconciliation-test", Output: io.Discard})
}

type stubReader struct {
	rows []models.Payment
	err  error
	got  time.Time
}

func (s *stubReader) ListStale(_ context.Context, olderThan time.Time, _ int) ([]models.Payment, error) {
	s.got = olderThan
	return s.rows, s.err
}

type stubSyncer struct {
	results map[string]payments.Result
	calls   []string
}

func (s *stubSyncer) SyncPayment(_ context.Context, paymentID string) payments.Result {
	s.calls = append(s.calls, paymentID)
	return s.results[paymentID]
}

func TestNewJobRequiresDependencies(t *testing.T) {
	_, err := NewJob(JobParams{})
	require.Error(t, err)
	_, err = NewJob(JobParams{Logger: quietLogger(), Payments: &stubReader{}})
	require.Error(t, err)
}

func TestReconcileCountsOutcomes(t *testing.T) {
	reader := &stubReader{rows: []models.Payment{
		{PaymentID: "pay_a", Status: enums.PaymentStatusPending, PaymentGateway: "STRIPE"},
		{PaymentID: "pay_b", Status: enums.PaymentStatusProcessing, PaymentGateway: "STRIPE"},
		{PaymentID: "pay_c", Status: enums.PaymentStatusPending, PaymentGateway: "PAYPAL"},
		{PaymentID: "pay_d", Status: enums.PaymentStatusPending, PaymentGateway: "SQUARE"},
	}}
	syncer := &stubSyncer{results: map[string]payments.Result{
		"pay_a": {Success: true, Status: string(enums.PaymentStatusCompleted)},
		"pay_b": {Success: true, Status: string(enums.PaymentStatusProcessing)},
		"pay_c": {Success: false, Status: payments.StatusFailed, ErrorCode: "PAYPAL_RETRIEVE_ERROR"},
		"pay_d": {Success: false, Status: payments.StatusFailed, ErrorCode: payments.CodeInternal, ErrorMessage: "db down"},
	}}
	job, err := NewJob(JobParams{
		Logger:     quietLogger(),
		Payments:   reader,
		Syncer:     syncer,
		StaleAfter: 30 * time.Minute,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	require.Equal(t, JobName, job.Name())

	summary, err := job.Reconcile(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "pay_d")
	require.Equal(t, Summary{Scanned: 4, Changed: 1, Unchanged: 1, Failed: 2}, summary)
	require.Equal(t, []string{"pay_a", "pay_b", "pay_c", "pay_d"}, syncer.calls)
	require.True(t, reader.got.Equal(now.Add(-30*time.Minute)))
}

func TestReconcileListFailure(t *testing.T) {
	job, err := NewJob(JobParams{
		Logger:   quietLogger(),
		Payments: &stubReader{err: errors.New("timeout")},
		Syncer:   &stubSyncer{},
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

func TestReconcileAppliesProviderStatus(t *testing.T) {
	conn := dbtest.Open(t)
	user := &models.User{UserID: "u-1", ServiceID: "svc-a", Email: "u1@a.test", IsActive: true}
	require.NoError(t, conn.Create(user).Error)

	seed := func(id string, status enums.PaymentStatus, created time.Time) {
		external := "pi_" + id
		require.NoError(t, conn.Create(&models.Payment{
			PaymentID:             id,
			UserID:                user.ID,
			Amount:                decimal.NewFromInt(10),
			Currency:              "USD",
			Status:                status,
			Type:                  enums.PaymentTypeOneTime,
			ExternalTransactionID: &external,
			PaymentGateway:        "STRIPE",
			CreatedAt:             created,
		}).Error)
	}
	seed("pay_old", enums.PaymentStatusPending, now.Add(-time.Hour))
	seed("pay_fresh", enums.PaymentStatusPending, now.Add(-time.Minute))
	seed("pay_done", enums.PaymentStatusCompleted, now.Add(-time.Hour))

	stripe := gatewaytest.New(enums.PaymentProviderStripe)
	clock := func() time.Time { return now }
	repo := payments.NewRepository(conn)
	orchestrator := newOrchestrator(t, conn, stripe, clock)

	job, err := NewJob(JobParams{
		Logger:     quietLogger(),
		Payments:   repo,
		Syncer:     orchestrator,
		StaleAfter: 15 * time.Minute,
		Now:        clock,
	})
	require.NoError(t, err)

	summary, err := job.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Scanned)
	require.Equal(t, 1, summary.Changed)
	require.Equal(t, 1, stripe.CallCount(gateway.OpRetrievePayment))
	require.Equal(t, "pi_pay_old", stripe.Calls()[0].ID)

	var stored models.Payment
	require.NoError(t, conn.Where("payment_id = ?", "pay_old").First(&stored).Error)
	require.Equal(t, enums.PaymentStatusCompleted, stored.Status)
}

func newOrchestrator(t *testing.T, conn *gorm.DB, adapter gateway.Adapter, clock func() time.Time) payments.Service {
	t.Helper()
	registry, err := gateway.NewRegistry([]gateway.Adapter{adapter})
	require.NoError(t, err)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	subs, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repository: subscriptions.NewRepository(conn),
		Outbox:     publisher,
		Clock:      clock,
	})
	require.NoError(t, err)
	orchestrator, err := payments.NewService(payments.ServiceParams{
		Repository:    payments.NewRepository(conn),
		Orders:        orders.NewRepository(conn),
		Subscriptions: subs,
		Users:         catalog.NewRepository(conn),
		Gateways:      registry,
		TxRunner:      db.NewFromGorm(conn),
		Outbox:        publisher,
		Clock:         clock,
	})
	require.NoError(t, err)
	return orchestrator
}

func TestReconcileRotatesPaymentsProviderKeepsPending(t *testing.T) {
	conn := dbtest.Open(t)
	user := &models.User{UserID: "u-1", ServiceID: "svc-a", Email: "u1@a.test", IsActive: true}
	require.NoError(t, conn.Create(user).Error)
	for i := 0; i < 3; i++ {
		external := fmt.Sprintf("pi_pay_%d", i)
		require.NoError(t, conn.Create(&models.Payment{
			PaymentID:             fmt.Sprintf("pay_%d", i),
			UserID:                user.ID,
			Amount:                decimal.NewFromInt(10),
			Currency:              "USD",
			Status:                enums.PaymentStatusPending,
			Type:                  enums.PaymentTypeOneTime,
			ExternalTransactionID: &external,
			PaymentGateway:        "STRIPE",
			CreatedAt:             now.Add(-time.Hour + time.Duration(i)*time.Minute),
		}).Error)
	}

	stripe := gatewaytest.New(enums.PaymentProviderStripe)
	stripe.On(gateway.OpRetrievePayment, gateway.Response{Success: true, Status: "requires_payment_method"})
	current := now
	clock := func() time.Time { return current }

	job, err := NewJob(JobParams{
		Logger:     quietLogger(),
		Payments:   payments.NewRepository(conn),
		Syncer:     newOrchestrator(t, conn, stripe, clock),
		StaleAfter: 15 * time.Minute,
		BatchSize:  2,
		Now:        clock,
	})
	require.NoError(t, err)

	for pass := 0; pass < 2; pass++ {
		summary, err := job.Reconcile(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, summary.Scanned)
		require.Equal(t, 2, summary.Unchanged)
		current = current.Add(time.Minute)
	}

	var ids []string
	for _, call := range stripe.Calls() {
		ids = append(ids, call.ID)
	}
	require.Equal(t, []string{"pi_pay_0", "pi_pay_1", "pi_pay_2", "pi_pay_0"}, ids)
}
