// Package gatewaytest provides a scriptable in-memory adapter for tests.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/enums"
)

// Call captures one invocation on the fake.
type Call struct {
	Op          gateway.Operation
	ID          string
	Payment     *gateway.PaymentRequest
	Sub         *gateway.SubscriptionRequest
	Update      *gateway.SubscriptionUpdateRequest
	Amount      *decimal.Decimal
	AtPeriodEnd bool
}

// Adapter answers every operation from Responses, falling back to a
// successful response echoing the id it was called with.
type Adapter struct {
	Provider  enums.PaymentProvider
	Responses map[gateway.Operation]gateway.Response
	// Hook, when set, runs before the canned response is returned.
	Hook func(ctx context.Context, op gateway.Operation)

	mu    sync.Mutex
	calls []Call
}

func New(provider enums.PaymentProvider) *Adapter {
	return &Adapter{Provider: provider, Responses: map[gateway.Operation]gateway.Response{}}
}

// On sets the response for op and returns the fake for chaining.
func (a *Adapter) On(op gateway.Operation, resp gateway.Response) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Responses[op] = resp
	return a
}

// Calls returns a copy of the recorded invocations.
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallCount counts invocations of op.
func (a *Adapter) CallCount(op gateway.Operation) int {
	n := 0
	for _, c := range a.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (a *Adapter) Name() enums.PaymentProvider { return a.Provider }

func (a *Adapter) answer(ctx context.Context, call Call) gateway.Response {
	a.mu.Lock()
	a.calls = append(a.calls, call)
	resp, ok := a.Responses[call.Op]
	hook := a.Hook
	a.mu.Unlock()

	if hook != nil {
		hook(ctx, call.Op)
	}
	if ok {
		return resp
	}
	return gateway.Response{
		Success:                true,
		PaymentID:              call.ID,
		ExternalTransactionID:  call.ID,
		ExternalSubscriptionID: call.ID,
		Status:                 "succeeded",
	}
}

func (a *Adapter) CreatePayment(ctx context.Context, req gateway.PaymentRequest) gateway.Response {
	return a.answer(ctx, Call{Op: gateway.OpCreatePayment, Payment: &req})
}

func (a *Adapter) ConfirmPayment(ctx context.Context, externalID string) gateway.Response {
	return a.answer(ctx, Call{Op: gateway.OpConfirmPayment, ID: externalID})
}

func (a *Adapter) CancelPayment(ctx context.Context, externalID string) gateway.Response {
	return a.answer(ctx, Call{Op: gateway.OpCancelPayment, ID: externalID})
}

func (a *Adapter) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) gateway.Response {
	return a.answer(ctx, Call{Op: gateway.OpRefundPayment, ID: externalID, Amount: amount})
}

func (a *Adapter) RetrievePayment(ctx context.Context, externalID string) gateway.Response {
	return a.answer(ctx, Call{Op: gateway.OpRetrievePayment, ID: externalID})
}

func (a *Adapter) CreateSubscription(ctx context.Context, req gateway.SubscriptionRequest) gateway.Response {
	return a.answer(ctx, Call{Op: gateway.OpCreateSubscription, Sub: &req})
}

func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) gateway.Response {
	return a.answer(ctx, Call{Op: gateway.OpCancelSubscription, ID: subscriptionID, AtPeriodEnd: cancelAtPeriodEnd})
}

func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, req gateway.SubscriptionUpdateRequest) gateway.Response {
	return a.answer(ctx, Call{Op: gateway.OpUpdateSubscription, ID: subscriptionID, Update: &req})
}

func (a *Adapter) RetrieveSubscription(ctx context.Context, subscriptionID string) gateway.Response {
	return a.answer(ctx, Call{Op: gateway.OpRetrieveSubscription, ID: subscriptionID})
}
