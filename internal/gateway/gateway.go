// Package gateway defines the provider-neutral payment adapter contract, the
// registry used to pick an adapter by name, and the decorators applied to
// every registered adapter.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/pkg/enums"
)

// Operation names one adapter capability. Values double as metric labels.
type Operation string

const (
	OpCreatePayment        Operation = "create_payment"
	OpConfirmPayment       Operation = "confirm_payment"
	OpCancelPayment        Operation = "cancel_payment"
	OpRefundPayment        Operation = "refund_payment"
	OpRetrievePayment      Operation = "retrieve_payment"
	OpCreateSubscription   Operation = "create_subscription"
	OpCancelSubscription   Operation = "cancel_subscription"
	OpUpdateSubscription   Operation = "update_subscription"
	OpRetrieveSubscription Operation = "retrieve_subscription"
)

// StatusFailed is the provider-neutral status carried by every failed response.
const StatusFailed = "failed"

// Adapter wraps one external processor. Implementations must never panic or
// return provider faults to the caller: every failure is reported through a
// Response with Success=false.
type Adapter interface {
	Name() enums.PaymentProvider

	CreatePayment(ctx context.Context, req PaymentRequest) Response
	ConfirmPayment(ctx context.Context, externalID string) Response
	CancelPayment(ctx context.Context, externalID string) Response
	RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) Response
	RetrievePayment(ctx context.Context, externalID string) Response

	CreateSubscription(ctx context.Context, req SubscriptionRequest) Response
	CancelSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) Response
	UpdateSubscription(ctx context.Context, subscriptionID string, req SubscriptionUpdateRequest) Response
	RetrieveSubscription(ctx context.Context, subscriptionID string) Response
}

// PaymentRequest describes a one-time charge.
type PaymentRequest struct {
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentMethodID string            `json:"paymentMethodId,omitempty"`
	CustomerID      string            `json:"customerId,omitempty"`
	IdempotencyKey  string            `json:"idempotencyKey,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// SubscriptionRequest describes a recurring agreement. Interval is one of
// day, week, month or year.
type SubscriptionRequest struct {
	CustomerID      string            `json:"customerId"`
	PaymentMethodID string            `json:"paymentMethodId,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Interval        string            `json:"interval"`
	IntervalCount   int               `json:"intervalCount"`
	TrialPeriodDays *int              `json:"trialPeriodDays,omitempty"`
	Description     string            `json:"description,omitempty"`
	IdempotencyKey  string            `json:"idempotencyKey,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// SubscriptionUpdateRequest changes price, payment method or metadata of an
// existing subscription. Nil/empty fields are left untouched.
type SubscriptionUpdateRequest struct {
	Amount          *decimal.Decimal  `json:"amount,omitempty"`
	PaymentMethodID string            `json:"paymentMethodId,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type SubscriptionDetails struct {
	SubscriptionID     string     `json:"subscriptionId"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd,omitempty"`
	Interval           string     `json:"interval,omitempty"`
	IntervalCount      *int       `json:"intervalCount,omitempty"`
	TrialEnd           *time.Time `json:"trialEnd,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
}

// Response is the single normalized shape returned by every adapter call.
// Status holds the provider's own vocabulary; MapStatus canonicalizes it.
type Response struct {
	Success                bool                 `json:"success"`
	PaymentID              string               `json:"paymentId,omitempty"`
	ExternalTransactionID  string               `json:"externalTransactionId,omitempty"`
	ExternalSubscriptionID string               `json:"externalSubscriptionId,omitempty"`
	Status                 string               `json:"status"`
	Amount                 *decimal.Decimal     `json:"amount,omitempty"`
	Currency               string               `json:"currency,omitempty"`
	SubscriptionDetails    *SubscriptionDetails `json:"subscriptionDetails,omitempty"`
	ErrorMessage           string               `json:"errorMessage,omitempty"`
	ErrorCode              string               `json:"errorCode,omitempty"`
	Metadata               map[string]any       `json:"metadata,omitempty"`
}

// CanonicalStatus maps the provider status of r to the canonical taxonomy.
func (r Response) CanonicalStatus() enums.PaymentStatus {
	return MapStatus(r.Status)
}

// Failure builds the response returned when a provider call fails.
func Failure(code string, err error) Response {
	msg := "unknown gateway error"
	if err != nil {
		msg = err.Error()
	}
	return Response{
		Success:      false,
		Status:       StatusFailed,
		ErrorCode:    code,
		ErrorMessage: msg,
	}
}
