package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/pkg/enums"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/metrics"
)

// Recorder receives one observation per adapter call.
type Recorder interface {
	Observe(provider, operation, outcome string, elapsed time.Duration)
}

// Instrument records call counts and latency and logs failed calls.
func Instrument(rec Recorder, logg *logger.Logger) Decorator {
	return func(next Adapter) Adapter {
		return &instrumentedAdapter{next: next, rec: rec, logg: logg, now: time.Now}
	}
}

type instrumentedAdapter struct {
	next Adapter
	rec  Recorder
	logg *logger.Logger
	now  func() time.Time
}

func (i *instrumentedAdapter) Name() enums.PaymentProvider { return i.next.Name() }

func (i *instrumentedAdapter) observe(ctx context.Context, op Operation, fn func() Response) Response {
	start := i.now()
	resp := fn()
	elapsed := i.now().Sub(start)

	outcome := metrics.GatewayOutcomeSuccess
	switch {
	case resp.ErrorCode == ErrorCodeTimeout:
		outcome = metrics.GatewayOutcomeTimeout
	case !resp.Success:
		outcome = metrics.GatewayOutcomeFailure
	}
	if i.rec != nil {
		i.rec.Observe(string(i.next.Name()), string(op), outcome, elapsed)
	}

	if !resp.Success && i.logg != nil {
		logCtx := i.logg.WithProvider(ctx, string(i.next.Name()))
		logCtx = i.logg.WithFields(logCtx, map[string]any{
			"operation":   string(op),
			"error_code":  resp.ErrorCode,
			"duration_ms": elapsed.Milliseconds(),
		})
		i.logg.Error(logCtx, "gateway call failed", errors.New(resp.ErrorMessage))
	}
	return resp
}

func (i *instrumentedAdapter) CreatePayment(ctx context.Context, req PaymentRequest) Response {
	return i.observe(ctx, OpCreatePayment, func() Response { return i.next.CreatePayment(ctx, req) })
}

func (i *instrumentedAdapter) ConfirmPayment(ctx context.Context, externalID string) Response {
	return i.observe(ctx, OpConfirmPayment, func() Response { return i.next.ConfirmPayment(ctx, externalID) })
}

func (i *instrumentedAdapter) CancelPayment(ctx context.Context, externalID string) Response {
	return i.observe(ctx, OpCancelPayment, func() Response { return i.next.CancelPayment(ctx, externalID) })
}

func (i *instrumentedAdapter) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) Response {
	return i.observe(ctx, OpRefundPayment, func() Response { return i.next.RefundPayment(ctx, externalID, amount) })
}

func (i *instrumentedAdapter) RetrievePayment(ctx context.Context, externalID string) Response {
	return i.observe(ctx, OpRetrievePayment, func() Response { return i.next.RetrievePayment(ctx, externalID) })
}

func (i *instrumentedAdapter) CreateSubscription(ctx context.Context, req SubscriptionRequest) Response {
	return i.observe(ctx, OpCreateSubscription, func() Response { return i.next.CreateSubscription(ctx, req) })
}

func (i *instrumentedAdapter) CancelSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) Response {
	return i.observe(ctx, OpCancelSubscription, func() Response {
		return i.next.CancelSubscription(ctx, subscriptionID, cancelAtPeriodEnd)
	})
}

func (i *instrumentedAdapter) UpdateSubscription(ctx context.Context, subscriptionID string, req SubscriptionUpdateRequest) Response {
	return i.observe(ctx, OpUpdateSubscription, func() Response {
		return i.next.UpdateSubscription(ctx, subscriptionID, req)
	})
}

func (i *instrumentedAdapter) RetrieveSubscription(ctx context.Context, subscriptionID string) Response {
	return i.observe(ctx, OpRetrieveSubscription, func() Response {
		return i.next.RetrieveSubscription(ctx, subscriptionID)
	})
}
