package stripe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	pkgstripe "github.com/openbillingstore/billing-core/pkg/stripe"
)

type stubAPI struct {
	err error

	created      pkgstripe.PaymentIntentCreateParams
	intent       *pkgstripe.PaymentIntent
	refundAmount *int64
	refundID     string
	subParams    pkgstripe.SubscriptionCreateParams
	updateParams pkgstripe.SubscriptionUpdateParams
	atPeriodEnd  bool
	sub          *pkgstripe.Subscription
	panicOn      string
}

func (s *stubAPI) CreatePaymentIntent(_ context.Context, p pkgstripe.PaymentIntentCreateParams) (*pkgstripe.PaymentIntent, error) {
	s.created = p
	if s.err != nil {
		return nil, s.err
	}
	return &pkgstripe.PaymentIntent{ID: "pi_123", Status: "requires_confirmation", Amount: p.Amount, Currency: p.Currency}, nil
}

func (s *stubAPI) ConfirmPaymentIntent(_ context.Context, id string) (*pkgstripe.PaymentIntent, error) {
	if s.panicOn == "confirm" {
		panic("sdk exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &pkgstripe.PaymentIntent{ID: id, Status: "succeeded", Amount: 10000, Currency: "USD"}, nil
}

func (s *stubAPI) CancelPaymentIntent(_ context.Context, id string) (*pkgstripe.PaymentIntent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &pkgstripe.PaymentIntent{ID: id, Status: "canceled"}, nil
}

func (s *stubAPI) GetPaymentIntent(_ context.Context, id string) (*pkgstripe.PaymentIntent, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.intent != nil {
		return s.intent, nil
	}
	return &pkgstripe.PaymentIntent{ID: id, Status: "processing", Amount: 1255, Currency: "JPY"}, nil
}

func (s *stubAPI) CreateRefund(_ context.Context, id string, amount *int64) (*pkgstripe.Refund, error) {
	s.refundID = id
	s.refundAmount = amount
	if s.err != nil {
		return nil, s.err
	}
	total := int64(10000)
	if amount != nil {
		total = *amount
	}
	return &pkgstripe.Refund{ID: "re_1", PaymentIntentID: id, Status: "succeeded", Amount: total, Currency: "USD"}, nil
}

func (s *stubAPI) CreateSubscription(_ context.Context, p pkgstripe.SubscriptionCreateParams) (*pkgstripe.Subscription, error) {
	s.subParams = p
	if s.err != nil {
		return nil, s.err
	}
	return s.sub, nil
}

func (s *stubAPI) CancelSubscription(_ context.Context, id string, atPeriodEnd bool) (*pkgstripe.Subscription, error) {
	s.atPeriodEnd = atPeriodEnd
	if s.err != nil {
		return nil, s.err
	}
	status := "canceled"
	if atPeriodEnd {
		status = "active"
	}
	return &pkgstripe.Subscription{ID: id, Status: status, CancelAtPeriodEnd: atPeriodEnd}, nil
}

func (s *stubAPI) UpdateSubscription(_ context.Context, id string, p pkgstripe.SubscriptionUpdateParams) (*pkgstripe.Subscription, error) {
	s.updateParams = p
	if s.err != nil {
		return nil, s.err
	}
	return &pkgstripe.Subscription{ID: id, Status: "active"}, nil
}

func (s *stubAPI) GetSubscription(_ context.Context, id string) (*pkgstripe.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &pkgstripe.Subscription{ID: id, Status: "active", Interval: "month", IntervalCount: 1}, nil
}

var _ gateway.Adapter = (*Adapter)(nil)

func TestCreatePaymentConvertsToMinorUnits(t *testing.T) {
	api := &stubAPI{}
	a := New(api)
	require.Equal(t, enums.PaymentProviderStripe, a.Name())

	resp := a.CreatePayment(context.Background(), gateway.PaymentRequest{
		Amount:         decimal.RequireFromString("108.74"),
		Currency:       "usd",
		IdempotencyKey: "idem-1",
		Metadata:       map[string]string{"orderId": "ORD-1"},
	})

	require.True(t, resp.Success)
	require.Equal(t, "pi_123", resp.PaymentID)
	require.Equal(t, "pi_123", resp.ExternalTransactionID)
	require.Equal(t, enums.PaymentStatusPending, resp.CanonicalStatus())
	require.True(t, resp.Amount.Equal(decimal.RequireFromString("108.74")))
	require.Equal(t, "USD", resp.Currency)
	require.Equal(t, int64(10874), api.created.Amount)
	require.Equal(t, "idem-1", api.created.IdempotencyKey)
	require.Equal(t, "ORD-1", api.created.Metadata["orderId"])
}

func TestCreatePaymentMintsIdempotencyKey(t *testing.T) {
	api := &stubAPI{}
	New(api).CreatePayment(context.Background(), gateway.PaymentRequest{Amount: decimal.NewFromInt(1)})
	require.Contains(t, api.created.IdempotencyKey, "stripe-")
	require.Equal(t, "USD", api.created.Currency)
}

func TestCreatePaymentFailures(t *testing.T) {
	resp := New(&stubAPI{}).CreatePayment(context.Background(), gateway.PaymentRequest{Amount: decimal.Zero})
	require.False(t, resp.Success)
	require.Equal(t, CodeCreate, resp.ErrorCode)
	require.Equal(t, gateway.StatusFailed, resp.Status)

	api := &stubAPI{err: pkgerrors.New(pkgerrors.CodeGateway, "Your card was declined.")}
	resp = New(api).CreatePayment(context.Background(), gateway.PaymentRequest{Amount: decimal.NewFromInt(5), Currency: "USD"})
	require.False(t, resp.Success)
	require.Equal(t, CodeCreate, resp.ErrorCode)
	require.Contains(t, resp.ErrorMessage, "Your card was declined.")
}

func TestConfirmRecoversFromPanics(t *testing.T) {
	resp := New(&stubAPI{panicOn: "confirm"}).ConfirmPayment(context.Background(), "pi_1")
	require.False(t, resp.Success)
	require.Equal(t, CodeConfirm, resp.ErrorCode)

	resp = New(&stubAPI{}).ConfirmPayment(context.Background(), "pi_1")
	require.True(t, resp.Success)
	require.Equal(t, enums.PaymentStatusCompleted, resp.CanonicalStatus())
	require.True(t, resp.Amount.Equal(decimal.NewFromInt(100)))
}

func TestCancelAndRetrieve(t *testing.T) {
	a := New(&stubAPI{})
	resp := a.CancelPayment(context.Background(), "pi_1")
	require.True(t, resp.Success)
	require.Equal(t, enums.PaymentStatusCancelled, resp.CanonicalStatus())

	resp = a.RetrievePayment(context.Background(), "pi_1")
	require.Equal(t, enums.PaymentStatusProcessing, resp.CanonicalStatus())
	require.True(t, resp.Amount.Equal(decimal.NewFromInt(1255)))
	require.Equal(t, "JPY", resp.Currency)

	resp = New(&stubAPI{err: errors.New("boom")}).CancelPayment(context.Background(), "pi_1")
	require.Equal(t, CodeCancel, resp.ErrorCode)
	resp = New(&stubAPI{err: errors.New("boom")}).RetrievePayment(context.Background(), "pi_1")
	require.Equal(t, CodeRetrieve, resp.ErrorCode)
}

func TestRefundUsesIntentCurrencyForPartialAmounts(t *testing.T) {
	api := &stubAPI{intent: &pkgstripe.PaymentIntent{ID: "pi_1", Currency: "JPY"}}
	partial := decimal.NewFromInt(500)
	resp := New(api).RefundPayment(context.Background(), "pi_1", &partial)
	require.True(t, resp.Success)
	require.Equal(t, int64(500), *api.refundAmount)
	require.Equal(t, "re_1", resp.PaymentID)
	require.Equal(t, "pi_1", resp.ExternalTransactionID)
	require.Equal(t, enums.PaymentStatusRefunded, resp.CanonicalStatus())

	api = &stubAPI{}
	resp = New(api).RefundPayment(context.Background(), "pi_2", nil)
	require.True(t, resp.Success)
	require.Nil(t, api.refundAmount)
	require.True(t, resp.Amount.Equal(decimal.NewFromInt(100)))

	resp = New(&stubAPI{err: errors.New("charge already refunded")}).RefundPayment(context.Background(), "pi_3", nil)
	require.Equal(t, CodeRefund, resp.ErrorCode)
}

func TestCreateSubscriptionCarriesDetails(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	api := &stubAPI{sub: &pkgstripe.Subscription{ID: "sub_1", Status: "active", CurrentPeriodStart: &start, CurrentPeriodEnd: &end}}
	trial := 14

	resp := New(api).CreateSubscription(context.Background(), gateway.SubscriptionRequest{
		CustomerID:      "cus_1",
		Amount:          decimal.RequireFromString("9.99"),
		Currency:        "USD",
		Interval:        "month",
		TrialPeriodDays: &trial,
	})

	require.True(t, resp.Success)
	require.Equal(t, "sub_1", resp.ExternalSubscriptionID)
	require.Equal(t, int64(999), api.subParams.UnitAmount)
	require.Equal(t, int64(1), api.subParams.IntervalCount)
	require.Equal(t, int64(14), *api.subParams.TrialPeriodDays)
	require.NotNil(t, resp.SubscriptionDetails)
	require.Equal(t, "month", resp.SubscriptionDetails.Interval)
	require.Equal(t, 1, *resp.SubscriptionDetails.IntervalCount)
	require.Equal(t, &end, resp.SubscriptionDetails.CurrentPeriodEnd)

	resp = New(&stubAPI{err: errors.New("no such customer")}).CreateSubscription(context.Background(), gateway.SubscriptionRequest{
		CustomerID: "cus_x", Amount: decimal.NewFromInt(1), Interval: "month",
	})
	require.Equal(t, CodeSubscription, resp.ErrorCode)
}

func TestSubscriptionLifecycle(t *testing.T) {
	api := &stubAPI{}
	a := New(api)

	resp := a.CancelSubscription(context.Background(), "sub_1", true)
	require.True(t, resp.Success)
	require.True(t, api.atPeriodEnd)
	require.True(t, resp.SubscriptionDetails.CancelAtPeriodEnd)
	require.Equal(t, "active", resp.Status)

	resp = a.CancelSubscription(context.Background(), "sub_1", false)
	require.Equal(t, "canceled", resp.Status)

	amount := decimal.RequireFromString("19.99")
	resp = a.UpdateSubscription(context.Background(), "sub_1", gateway.SubscriptionUpdateRequest{Amount: &amount, PaymentMethodID: "pm_2"})
	require.True(t, resp.Success)
	require.True(t, api.updateParams.Amount.Equal(amount))
	require.Equal(t, "pm_2", api.updateParams.PaymentMethodID)

	resp = a.RetrieveSubscription(context.Background(), "sub_1")
	require.True(t, resp.Success)
	require.Equal(t, "month", resp.SubscriptionDetails.Interval)

	failing := New(&stubAPI{err: errors.New("gone")})
	require.Equal(t, CodeCancelSubscription, failing.CancelSubscription(context.Background(), "s", true).ErrorCode)
	require.Equal(t, CodeUpdateSubscription, failing.UpdateSubscription(context.Background(), "s", gateway.SubscriptionUpdateRequest{}).ErrorCode)
	require.Equal(t, CodeRetrieveSubscription, failing.RetrieveSubscription(context.Background(), "s").ErrorCode)
}
