package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

// ErrorCodeTimeout marks responses cut short by the per-call deadline or by
// caller cancellation.
const ErrorCodeTimeout = "GATEWAY_TIMEOUT"

// ErrorCodeGateway marks responses from an adapter call that panicked.
const ErrorCodeGateway = string(pkgerrors.CodeGateway)

// WithTimeout bounds every adapter call by d. A call that outlives its
// deadline resolves to a failed response; the provider call keeps the
// derived context so SDKs that honor it stop early.
func WithTimeout(d time.Duration) Decorator {
	return func(next Adapter) Adapter {
		if d <= 0 {
			return next
		}
		return &timeoutAdapter{next: next, timeout: d}
	}
}

type timeoutAdapter struct {
	next    Adapter
	timeout time.Duration
}

func (t *timeoutAdapter) Name() enums.PaymentProvider { return t.next.Name() }

func (t *timeoutAdapter) run(ctx context.Context, op Operation, fn func(context.Context) Response) Response {
	if err := ctx.Err(); err != nil {
		return timeoutFailure(op, err)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan Response, 1)
	go func() {
		done <- Safely(ErrorCodeGateway, func() (Response, error) {
			return fn(ctx), nil
		})
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		return timeoutFailure(op, ctx.Err())
	}
}

func timeoutFailure(op Operation, err error) Response {
	reason := "cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timed out"
	}
	return Failure(ErrorCodeTimeout, fmt.Errorf("gateway %s %s", op, reason))
}

func (t *timeoutAdapter) CreatePayment(ctx context.Context, req PaymentRequest) Response {
	return t.run(ctx, OpCreatePayment, func(ctx context.Context) Response {
		return t.next.CreatePayment(ctx, req)
	})
}

func (t *timeoutAdapter) ConfirmPayment(ctx context.Context, externalID string) Response {
	return t.run(ctx, OpConfirmPayment, func(ctx context.Context) Response {
		return t.next.ConfirmPayment(ctx, externalID)
	})
}

func (t *timeoutAdapter) CancelPayment(ctx context.Context, externalID string) Response {
	return t.run(ctx, OpCancelPayment, func(ctx context.Context) Response {
		return t.next.CancelPayment(ctx, externalID)
	})
}

func (t *timeoutAdapter) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) Response {
	return t.run(ctx, OpRefundPayment, func(ctx context.Context) Response {
		return t.next.RefundPayment(ctx, externalID, amount)
	})
}

func (t *timeoutAdapter) RetrievePayment(ctx context.Context, externalID string) Response {
	return t.run(ctx, OpRetrievePayment, func(ctx context.Context) Response {
		return t.next.RetrievePayment(ctx, externalID)
	})
}

func (t *timeoutAdapter) CreateSubscription(ctx context.Context, req SubscriptionRequest) Response {
	return t.run(ctx, OpCreateSubscription, func(ctx context.Context) Response {
		return t.next.CreateSubscription(ctx, req)
	})
}

func (t *timeoutAdapter) CancelSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) Response {
	return t.run(ctx, OpCancelSubscription, func(ctx context.Context) Response {
		return t.next.CancelSubscription(ctx, subscriptionID, cancelAtPeriodEnd)
	})
}

func (t *timeoutAdapter) UpdateSubscription(ctx context.Context, subscriptionID string, req SubscriptionUpdateRequest) Response {
	return t.run(ctx, OpUpdateSubscription, func(ctx context.Context) Response {
		return t.next.UpdateSubscription(ctx, subscriptionID, req)
	})
}

func (t *timeoutAdapter) RetrieveSubscription(ctx context.Context, subscriptionID string) Response {
	return t.run(ctx, OpRetrieveSubscription, func(ctx context.Context) Response {
		return t.next.RetrieveSubscription(ctx, subscriptionID)
	})
}
