package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/internal/catalog"
	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/internal/gateway/gatewaytest"
	"github.com/openbillingstore/billing-core/internal/orders"
	"github.com/openbillingstore/billing-core/internal/subscriptions"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/dbtest"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/pagination"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type memoryJournal struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{data: map[string]string{}}
}

func (m *memoryJournal) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryJournal) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func (m *memoryJournal) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryJournal) JournalKey(scope, id string) string { return "journal:" + scope + ":" + id }

func (m *memoryJournal) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

type failingTx struct{}

func (failingTx) WithTx(context.Context, func(tx *gorm.DB) error) error {
	return errors.New("connection reset")
}

type fixture struct {
	conn    *gorm.DB
	stripe  *gatewaytest.Adapter
	journal *memoryJournal
	user    *models.User
	order   *models.Order
	service Service
}

type fixtureOption func(*ServiceParams)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		conn:    conn,
		stripe:  gatewaytest.New(enums.PaymentProviderStripe),
		journal: newMemoryJournal(),
	}
	f.user = &models.User{UserID: "u-1", ServiceID: "svc-a", Email: "u1@a.test", IsActive: true}
	require.NoError(t, conn.Create(f.user).Error)
	f.order = &models.Order{
		OrderNumber:  "ORD-2025060112-000001",
		UserID:       f.user.ID,
		ServiceID:    "svc-a",
		ProductID:    "PRO",
		CountryCode:  "US",
		CurrencyCode: "USD",
		ProductPrice: decimal.RequireFromString("99.99"),
		TaxAmount:    decimal.RequireFromString("8.75"),
		TotalAmount:  decimal.RequireFromString("108.74"),
		Status:       enums.OrderStatusPending,
		Type:         enums.OrderTypeOneTime,
	}
	require.NoError(t, conn.Create(f.order).Error)

	registry, err := gateway.NewRegistry([]gateway.Adapter{f.stripe})
	require.NoError(t, err)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	clock := func() time.Time { return fixedNow }
	subs, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repository: subscriptions.NewRepository(conn),
		Outbox:     publisher,
		Clock:      clock,
	})
	require.NoError(t, err)

	params := ServiceParams{
		Repository:    NewRepository(conn),
		Orders:        orders.NewRepository(conn),
		Subscriptions: subs,
		Users:         catalog.NewRepository(conn),
		Gateways:      registry,
		Journal:       NewJournal(f.journal, time.Hour),
		TxRunner:      db.NewFromGorm(conn),
		Outbox:        publisher,
		Clock:         clock,
	}
	for _, opt := range opts {
		opt(&params)
	}
	f.service, err = NewService(params)
	require.NoError(t, err)
	return f
}

func (f *fixture) pay(t *testing.T, input CreatePaymentInput) Result {
	t.Helper()
	if input.UserID == "" {
		input.UserID = f.user.ID.String()
	}
	if input.Gateway == "" {
		input.Gateway = "stripe"
	}
	if input.Amount.IsZero() {
		input.Amount = decimal.RequireFromString("108.74")
	}
	return f.service.CreatePayment(context.Background(), input)
}

func (f *fixture) countPayments(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&n).Error)
	return n
}

func (f *fixture) reloadOrder(t *testing.T) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", f.order.ID).Error)
	return order
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", eventType).Find(&rows).Error)
	return len(rows)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreatePaymentPersistsAndPaysOrder(t *testing.T) {
	f := newFixture(t)
	f.stripe.On(gateway.OpCreatePayment, gateway.Response{
		Success: true, PaymentID: "pi_1", ExternalTransactionID: "pi_1", Status: "succeeded",
	})

	res := f.pay(t, CreatePaymentInput{OrderID: f.order.OrderNumber, Currency: "usd", PaymentMethodID: "pm_card_visa"})

	require.True(t, res.Success, res.ErrorMessage)
	require.Equal(t, "pi_1", res.PaymentID)
	require.Equal(t, string(enums.PaymentStatusCompleted), res.Status)
	require.Equal(t, "STRIPE", res.PaymentGateway)
	require.Equal(t, "USD", res.Currency)

	calls := f.stripe.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, f.order.OrderNumber, calls[0].Payment.Metadata["orderId"])
	require.NotEmpty(t, calls[0].Payment.IdempotencyKey)

	var stored models.Payment
	require.NoError(t, f.conn.Where("payment_id = ?", "pi_1").First(&stored).Error)
	require.Equal(t, f.order.ID, *stored.OrderID)
	require.NotNil(t, stored.ProcessedAt)

	order := f.reloadOrder(t)
	require.Equal(t, enums.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaidAt)
	require.Equal(t, 1, f.events(t, enums.EventPaymentCreated))
	require.Equal(t, 1, f.events(t, enums.EventOrderStatusChanged))
}

func TestCreatePaymentGatewayFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.stripe.On(gateway.OpCreatePayment, gateway.Failure("STRIPE_ERROR", errors.New("card declined")))

	res := f.pay(t, CreatePaymentInput{})

	require.False(t, res.Success)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, "STRIPE_ERROR", res.ErrorCode)
	require.Equal(t, "card declined", res.ErrorMessage)
	require.Zero(t, f.countPayments(t))
	require.Zero(t, f.journal.size())
}

func TestCreatePaymentLookupFailures(t *testing.T) {
	f := newFixture(t)

	res := f.pay(t, CreatePaymentInput{Gateway: "braintree"})
	require.Equal(t, string(pkgerrors.CodeConfiguration), res.ErrorCode)

	res = f.pay(t, CreatePaymentInput{UserID: uuid.NewString()})
	require.Equal(t, StatusNotFound, res.Status)
	require.Equal(t, string(pkgerrors.CodeNotFound), res.ErrorCode)

	res = f.pay(t, CreatePaymentInput{UserID: "u-1", ServiceID: "svc-b"})
	require.Equal(t, StatusNotFound, res.Status)

	res = f.pay(t, CreatePaymentInput{OrderID: "ORD-missing"})
	require.Equal(t, StatusNotFound, res.Status)

	res = f.pay(t, CreatePaymentInput{Amount: decimal.NewFromInt(-1)})
	require.Equal(t, string(pkgerrors.CodeValidation), res.ErrorCode)

	res = f.pay(t, CreatePaymentInput{PaymentType: "LAYAWAY"})
	require.Equal(t, string(pkgerrors.CodeValidation), res.ErrorCode)

	require.Zero(t, f.stripe.CallCount(gateway.OpCreatePayment))
	require.Zero(t, f.countPayments(t))
}

func TestCreatePaymentResolvesTenantScopedUser(t *testing.T) {
	f := newFixture(t)
	res := f.pay(t, CreatePaymentInput{UserID: "u-1", ServiceID: "svc-a"})
	require.True(t, res.Success, res.ErrorMessage)
}

func TestCreatePaymentIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	f.stripe.On(gateway.OpCreatePayment, gateway.Response{Success: true, PaymentID: "pi_k", ExternalTransactionID: "pi_k", Status: "requires_confirmation"})

	first := f.pay(t, CreatePaymentInput{IdempotencyKey: "key-1"})
	second := f.pay(t, CreatePaymentInput{IdempotencyKey: "key-1"})

	require.True(t, first.Success)
	require.Equal(t, first.PaymentID, second.PaymentID)
	require.Equal(t, 1, f.stripe.CallCount(gateway.OpCreatePayment))
	require.Equal(t, scopedIdempotencyKey(f.user, "key-1"), f.stripe.Calls()[0].Payment.IdempotencyKey)
	require.Equal(t, int64(1), f.countPayments(t))
	require.Zero(t, f.journal.size())
}

func (f *fixture) addUser(t *testing.T, userID, serviceID string) *models.User {
	t.Helper()
	user := &models.User{UserID: userID, ServiceID: serviceID, Email: userID + "@" + serviceID + ".test", IsActive: true}
	require.NoError(t, f.conn.Create(user).Error)
	return user
}

func TestCreatePaymentIdempotencyKeyScopedToUser(t *testing.T) {
	f := newFixture(t)
	other := f.addUser(t, "u-9", "svc-b")
	f.stripe.On(gateway.OpCreatePayment, gateway.Response{Success: true, PaymentID: "pi_a", ExternalTransactionID: "pi_a", Status: "succeeded"})
	first := f.pay(t, CreatePaymentInput{UserID: "u-1", ServiceID: "svc-a", OrderID: f.order.OrderNumber, IdempotencyKey: "order-1"})
	require.True(t, first.Success, first.ErrorMessage)

	f.stripe.On(gateway.OpCreatePayment, gateway.Response{Success: true, PaymentID: "pi_b", ExternalTransactionID: "pi_b", Status: "succeeded"})
	second := f.pay(t, CreatePaymentInput{UserID: "u-9", ServiceID: "svc-b", IdempotencyKey: "order-1"})
	require.True(t, second.Success, second.ErrorMessage)
	require.Equal(t, "pi_b", second.PaymentID)

	calls := f.stripe.Calls()
	require.Len(t, calls, 2)
	require.NotEqual(t, calls[0].Payment.IdempotencyKey, calls[1].Payment.IdempotencyKey)

	var stored models.Payment
	require.NoError(t, f.conn.Where("payment_id = ?", "pi_b").First(&stored).Error)
	require.Equal(t, other.ID, stored.UserID)

	missing := f.pay(t, CreatePaymentInput{UserID: "nobody", ServiceID: "svc-z", IdempotencyKey: "order-1"})
	require.False(t, missing.Success)
	require.Equal(t, StatusNotFound, missing.Status)
	require.Empty(t, missing.PaymentID)
	require.Len(t, f.stripe.Calls(), 2)
}

func TestCreatePaymentRejectsKeyReusedForDifferentRequest(t *testing.T) {
	f := newFixture(t)
	f.stripe.On(gateway.OpCreatePayment, gateway.Response{Success: true, PaymentID: "pi_r", ExternalTransactionID: "pi_r", Status: "succeeded"})

	first := f.pay(t, CreatePaymentInput{IdempotencyKey: "key-r"})
	require.True(t, first.Success, first.ErrorMessage)

	res := f.pay(t, CreatePaymentInput{IdempotencyKey: "key-r", Amount: decimal.RequireFromString("5.00")})
	require.False(t, res.Success)
	require.Equal(t, string(pkgerrors.CodeIdempotency), res.ErrorCode)
	require.Empty(t, res.PaymentID)

	// the same amount written differently is the same request
	again := f.pay(t, CreatePaymentInput{IdempotencyKey: "key-r", Amount: decimal.RequireFromString("108.740")})
	require.True(t, again.Success, again.ErrorMessage)
	require.Equal(t, "pi_r", again.PaymentID)
	require.Equal(t, 1, f.stripe.CallCount(gateway.OpCreatePayment))
}

func TestCreatePaymentJournalRejectsDifferentRequest(t *testing.T) {
	f := newFixture(t)
	f.stripe.On(gateway.OpCreatePayment, gateway.Response{Success: true, PaymentID: "pi_x", ExternalTransactionID: "pi_x", Status: "processing"})
	broken := newFixture(t, func(p *ServiceParams) {
		p.TxRunner = failingTx{}
		p.Gateways, _ = gateway.NewRegistry([]gateway.Adapter{f.stripe})
		p.Journal = NewJournal(f.journal, time.Hour)
	})
	res := broken.pay(t, CreatePaymentInput{IdempotencyKey: "key-x"})
	require.Equal(t, CodeInternal, res.ErrorCode)
	require.Equal(t, 1, f.journal.size())

	retry := f.pay(t, CreatePaymentInput{IdempotencyKey: "key-x", Amount: decimal.RequireFromString("1.00")})
	require.False(t, retry.Success)
	require.Equal(t, string(pkgerrors.CodeIdempotency), retry.ErrorCode)
	require.Zero(t, f.countPayments(t))
	require.Equal(t, 1, f.stripe.CallCount(gateway.OpCreatePayment))
	require.Equal(t, 1, f.journal.size())

	// another tenant's user with the same key never sees the journaled response
	f.addUser(t, "u-9", "svc-b")
	f.stripe.On(gateway.OpCreatePayment, gateway.Response{Success: true, PaymentID: "pi_y", ExternalTransactionID: "pi_y", Status: "processing"})
	other := f.pay(t, CreatePaymentInput{UserID: "u-9", ServiceID: "svc-b", IdempotencyKey: "key-x"})
	require.True(t, other.Success, other.ErrorMessage)
	require.Equal(t, "pi_y", other.PaymentID)
	require.Equal(t, 2, f.stripe.CallCount(gateway.OpCreatePayment))
}

func TestCreatePaymentRejectsForeignSubscription(t *testing.T) {
	f := newFixture(t)
	sub := seedSubscription(t, f, enums.SubscriptionStatusActive)
	f.addUser(t, "u-9", "svc-b")

	res := f.pay(t, CreatePaymentInput{UserID: "u-9", ServiceID: "svc-b", SubscriptionID: sub.ID.String()})
	require.False(t, res.Success)
	require.Equal(t, StatusNotFound, res.Status)
	require.Equal(t, string(pkgerrors.CodeNotFound), res.ErrorCode)
	require.Zero(t, f.stripe.CallCount(gateway.OpCreatePayment))
}

func TestCreateOneTimePaymentRejectsOrderAndSubscription(t *testing.T) {
	f := newFixture(t)
	sub := seedSubscription(t, f, enums.SubscriptionStatusActive)
	before := f.countPayments(t)

	res := f.pay(t, CreatePaymentInput{OrderID: f.order.OrderNumber, SubscriptionID: sub.ID.String()})
	require.False(t, res.Success)
	require.Equal(t, string(pkgerrors.CodeValidation), res.ErrorCode)
	require.Zero(t, f.stripe.CallCount(gateway.OpCreatePayment))
	require.Equal(t, before, f.countPayments(t))
}

func TestSyncPaymentStampsEveryAttempt(t *testing.T) {
	f := newFixture(t)
	payment := seedPayment(t, f, enums.PaymentStatusPending)
	f.stripe.On(gateway.OpRetrievePayment, gateway.Failure("STRIPE_RETRIEVE_ERROR", errors.New("timeout")))

	res := f.service.SyncPayment(context.Background(), payment.PaymentID)
	require.False(t, res.Success)

	var stored models.Payment
	require.NoError(t, f.conn.First(&stored, "id = ?", payment.ID).Error)
	require.NotNil(t, stored.ReconciledAt)
	require.True(t, stored.ReconciledAt.Equal(fixedNow))
	require.Equal(t, enums.PaymentStatusPending, stored.Status)
}

func TestCreatePaymentCommitFailureKeepsJournal(t *testing.T) {
	f := newFixture(t)
	f.stripe.On(gateway.OpCreatePayment, gateway.Response{Success: true, PaymentID: "pi_j", ExternalTransactionID: "pi_j", Status: "processing"})

	broken := newFixture(t, func(p *ServiceParams) {
		p.TxRunner = failingTx{}
		p.Gateways, _ = gateway.NewRegistry([]gateway.Adapter{f.stripe})
		p.Journal = NewJournal(f.journal, time.Hour)
	})
	res := broken.pay(t, CreatePaymentInput{IdempotencyKey: "key-j"})
	require.False(t, res.Success)
	require.Equal(t, CodeInternal, res.ErrorCode)
	require.Equal(t, 1, f.journal.size())

	// retry against a healthy database commits the journaled response
	retry := f.pay(t, CreatePaymentInput{IdempotencyKey: "key-j"})
	require.True(t, retry.Success, retry.ErrorMessage)
	require.Equal(t, "pi_j", retry.PaymentID)
	require.Equal(t, string(enums.PaymentStatusProcessing), retry.Status)
	require.Equal(t, 1, f.stripe.CallCount(gateway.OpCreatePayment))
	require.Zero(t, f.journal.size())
}

func TestCreateRecurringPaymentOpensSubscription(t *testing.T) {
	f := newFixture(t)
	periodEnd := fixedNow.AddDate(0, 1, 0)
	f.stripe.On(gateway.OpCreateSubscription, gateway.Response{
		Success:                true,
		ExternalSubscriptionID: "sub_1",
		Status:                 "active",
		SubscriptionDetails:    &gateway.SubscriptionDetails{SubscriptionID: "sub_1", Status: "active", CurrentPeriodEnd: &periodEnd},
	})
	trial := 0

	res := f.pay(t, CreatePaymentInput{
		PaymentType: "recurring",
		OrderID:     f.order.ID.String(),
		Plan:        &SubscriptionPlanInput{Interval: "month", IntervalCount: 1, TrialPeriodDays: &trial},
	})

	require.True(t, res.Success, res.ErrorMessage)
	require.Equal(t, "sub_1", res.ExternalSubscriptionID)
	require.NotEmpty(t, res.SubscriptionID)
	require.NotNil(t, res.SubscriptionDetails)
	require.Equal(t, 1, f.stripe.CallCount(gateway.OpCreateSubscription))
	require.Zero(t, f.stripe.CallCount(gateway.OpCreatePayment))

	var sub models.Subscription
	require.NoError(t, f.conn.Where("external_subscription_id = ?", "sub_1").First(&sub).Error)
	require.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.Equal(t, "PRO", sub.ProductID)
	require.Equal(t, string(enums.BillingIntervalMonthly), sub.BillingCycle)
	require.True(t, sub.NextBillingDate.Equal(periodEnd))
	require.Equal(t, sub.ID.String(), res.SubscriptionID)
}

func seedPayment(t *testing.T, f *fixture, status enums.PaymentStatus, mutate ...func(*models.Payment)) *models.Payment {
	t.Helper()
	external := "pi_" + uuid.NewString()[:8]
	payment := &models.Payment{
		PaymentID:             "pay_" + uuid.NewString(),
		OrderID:               &f.order.ID,
		UserID:                f.user.ID,
		Amount:                decimal.RequireFromString("108.74"),
		Currency:              "USD",
		Status:                status,
		Type:                  enums.PaymentTypeOneTime,
		ExternalTransactionID: &external,
		PaymentGateway:        "STRIPE",
	}
	for _, m := range mutate {
		m(payment)
	}
	require.NoError(t, f.conn.Create(payment).Error)
	return payment
}

func TestConfirmPaymentCompletes(t *testing.T) {
	f := newFixture(t)
	payment := seedPayment(t, f, enums.PaymentStatusPending)

	res := f.service.ConfirmPayment(context.Background(), payment.PaymentID)
	require.True(t, res.Success, res.ErrorMessage)
	require.Equal(t, string(enums.PaymentStatusCompleted), res.Status)
	require.NotNil(t, res.ProcessedAt)
	require.Equal(t, *payment.ExternalTransactionID, f.stripe.Calls()[0].ID)
	require.Equal(t, enums.OrderStatusPaid, f.reloadOrder(t).Status)
	require.Equal(t, 1, f.events(t, enums.EventPaymentStatusChanged))
}

func TestConfirmGatewayFailureLeavesStatus(t *testing.T) {
	f := newFixture(t)
	payment := seedPayment(t, f, enums.PaymentStatusPending)
	f.stripe.On(gateway.OpConfirmPayment, gateway.Failure("STRIPE_CONFIRM_ERROR", errors.New("requires action")))

	res := f.service.ConfirmPayment(context.Background(), payment.PaymentID)
	require.False(t, res.Success)
	require.Equal(t, "STRIPE_CONFIRM_ERROR", res.ErrorCode)

	var stored models.Payment
	require.NoError(t, f.conn.First(&stored, "id = ?", payment.ID).Error)
	require.Equal(t, enums.PaymentStatusPending, stored.Status)
}

func TestGuardsRunBeforeGatewayCalls(t *testing.T) {
	f := newFixture(t)
	completed := seedPayment(t, f, enums.PaymentStatusCompleted)
	pending := seedPayment(t, f, enums.PaymentStatusPending)
	cancelled := seedPayment(t, f, enums.PaymentStatusCancelled)

	res := f.service.ConfirmPayment(context.Background(), completed.PaymentID)
	require.Equal(t, string(pkgerrors.CodeStateConflict), res.ErrorCode)

	res = f.service.CancelPayment(context.Background(), completed.PaymentID)
	require.Equal(t, string(pkgerrors.CodeStateConflict), res.ErrorCode)

	res = f.service.RefundPayment(context.Background(), RefundInput{PaymentID: pending.PaymentID})
	require.Equal(t, string(pkgerrors.CodeStateConflict), res.ErrorCode)
	require.Equal(t, pending.PaymentID, res.PaymentID)

	res = f.service.RefundPayment(context.Background(), RefundInput{PaymentID: cancelled.PaymentID})
	require.Equal(t, string(pkgerrors.CodeStateConflict), res.ErrorCode)

	require.Empty(t, f.stripe.Calls())
}

func TestRefundCompletedPayment(t *testing.T) {
	f := newFixture(t)
	payment := seedPayment(t, f, enums.PaymentStatusCompleted)
	partial := decimal.RequireFromString("20.00")
	f.stripe.On(gateway.OpRefundPayment, gateway.Response{Success: true, Status: "refunded", Amount: &partial})

	res := f.service.RefundPayment(context.Background(), RefundInput{PaymentID: payment.PaymentID, Amount: &partial, Reason: "duplicate"})
	require.True(t, res.Success, res.ErrorMessage)
	require.Equal(t, string(enums.PaymentStatusRefunded), res.Status)
	require.True(t, res.Amount.Equal(partial))
	require.True(t, f.stripe.Calls()[0].Amount.Equal(partial))

	var stored models.Payment
	require.NoError(t, f.conn.First(&stored, "id = ?", payment.ID).Error)
	require.Equal(t, enums.PaymentStatusRefunded, stored.Status)
	require.Equal(t, "duplicate", stored.Metadata["refundReason"])
	require.Equal(t, enums.OrderStatusRefunded, f.reloadOrder(t).Status)

	tooMuch := decimal.NewFromInt(500)
	again := seedPayment(t, f, enums.PaymentStatusCompleted)
	res = f.service.RefundPayment(context.Background(), RefundInput{PaymentID: again.PaymentID, Amount: &tooMuch})
	require.Equal(t, string(pkgerrors.CodeValidation), res.ErrorCode)
}

func TestCancelPendingPayment(t *testing.T) {
	f := newFixture(t)
	payment := seedPayment(t, f, enums.PaymentStatusProcessing)

	res := f.service.CancelPayment(context.Background(), payment.PaymentID)
	require.True(t, res.Success, res.ErrorMessage)
	require.Equal(t, string(enums.PaymentStatusCancelled), res.Status)
	require.Equal(t, enums.OrderStatusCancelled, f.reloadOrder(t).Status)
}

func TestMissingStoredGatewayFailsFast(t *testing.T) {
	f := newFixture(t)
	payment := seedPayment(t, f, enums.PaymentStatusPending, func(p *models.Payment) { p.PaymentGateway = "" })

	res := f.service.ConfirmPayment(context.Background(), payment.PaymentID)
	require.False(t, res.Success)
	require.Equal(t, string(pkgerrors.CodeConfiguration), res.ErrorCode)
	require.Empty(t, f.stripe.Calls())
}

func TestRetrievePayment(t *testing.T) {
	f := newFixture(t)
	payment := seedPayment(t, f, enums.PaymentStatusCompleted)

	res := f.service.RetrievePayment(context.Background(), payment.PaymentID)
	require.True(t, res.Success)
	require.Equal(t, "USD", res.Currency)
	require.True(t, res.Amount.Equal(decimal.RequireFromString("108.74")))

	res = f.service.RetrievePayment(context.Background(), "pay_missing")
	require.False(t, res.Success)
	require.Equal(t, StatusNotFound, res.Status)
	require.Equal(t, CodePaymentNotFound, res.ErrorCode)
}

func TestSyncPaymentAppliesAllowedTransitions(t *testing.T) {
	f := newFixture(t)
	payment := seedPayment(t, f, enums.PaymentStatusPending)
	f.stripe.On(gateway.OpRetrievePayment, gateway.Response{Success: true, Status: "succeeded"})

	res := f.service.SyncPayment(context.Background(), payment.PaymentID)
	require.True(t, res.Success)
	require.Equal(t, string(enums.PaymentStatusCompleted), res.Status)

	refunded := seedPayment(t, f, enums.PaymentStatusRefunded)
	f.stripe.On(gateway.OpRetrievePayment, gateway.Response{Success: true, Status: "processing"})
	res = f.service.SyncPayment(context.Background(), refunded.PaymentID)
	require.True(t, res.Success)
	require.Equal(t, string(enums.PaymentStatusRefunded), res.Status)
}

func TestAdapterPanicBecomesInternalError(t *testing.T) {
	f := newFixture(t)
	payment := seedPayment(t, f, enums.PaymentStatusPending)
	f.stripe.Hook = func(context.Context, gateway.Operation) { panic("boom") }

	res := f.service.CancelPayment(context.Background(), payment.PaymentID)
	require.False(t, res.Success)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, CodeInternal, res.ErrorCode)
}

func TestListPaymentsPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		created := fixedNow.Add(time.Duration(i) * time.Minute)
		seedPayment(t, f, enums.PaymentStatusCompleted, func(p *models.Payment) { p.CreatedAt = created })
	}
	seedPayment(t, f, enums.PaymentStatusPending, func(p *models.Payment) { p.CreatedAt = fixedNow.Add(time.Hour) })

	page, err := f.service.ListByUser(context.Background(), f.user.ID.String(), pagination.Params{Limit: 4})
	require.NoError(t, err)
	require.Len(t, page.Payments, 4)
	require.NotEmpty(t, page.Cursor)
	require.Equal(t, string(enums.PaymentStatusPending), page.Payments[0].Status)

	rest, err := f.service.ListByUser(context.Background(), f.user.ID.String(), pagination.Params{Limit: 4, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Payments, 2)
	require.Empty(t, rest.Cursor)

	completed, err := f.service.ListByStatus(context.Background(), "completed", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, completed.Payments, 5)
	require.True(t, completed.Payments[0].CreatedAt.After(*completed.Payments[4].CreatedAt))

	_, err = f.service.ListByStatus(context.Background(), "settled", pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.service.ListByUser(context.Background(), "not-a-uuid", pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGatewaysAndTypes(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, []enums.PaymentProvider{enums.PaymentProviderStripe}, f.service.Gateways())
	require.ElementsMatch(t, []enums.PaymentType{enums.PaymentTypeOneTime, enums.PaymentTypeRecurring}, PaymentTypes())
}
