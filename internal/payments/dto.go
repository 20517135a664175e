package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
)

const (
	StatusFailed   = "FAILED"
	StatusNotFound = "NOT_FOUND"

	CodeInternal             = "INTERNAL_ERROR"
	CodePaymentNotFound      = "PAYMENT_NOT_FOUND"
	CodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
)

// CreatePaymentInput is a request to charge a user once or open a recurring
// agreement. UserID is the internal user id, or the tenant-scoped user id when
// ServiceID is set.
type CreatePaymentInput struct {
	UserID          string
	ServiceID       string
	Amount          decimal.Decimal
	Currency        string
	Gateway         string
	PaymentType     string
	PaymentMethodID string
	OrderID         string
	SubscriptionID  string
	Plan            *SubscriptionPlanInput
	IdempotencyKey  string
	Metadata        map[string]string
}

// SubscriptionPlanInput describes the cadence of a RECURRING payment.
type SubscriptionPlanInput struct {
	Interval        string
	IntervalCount   int
	TrialPeriodDays *int
	Description     string
}

type RefundInput struct {
	PaymentID string
	Amount    *decimal.Decimal
	Reason    string
}

type CancelSubscriptionInput struct {
	SubscriptionID    string
	CancelAtPeriodEnd bool
	Reason            string
}

type UpdateSubscriptionInput struct {
	SubscriptionID  string
	Amount          *decimal.Decimal
	PaymentMethodID string
	Metadata        map[string]string
}

// Result is the typed outcome of every orchestrator operation. Failures carry
// Success=false with Status FAILED or NOT_FOUND and an error code.
type Result struct {
	Success                bool                         `json:"success"`
	PaymentID              string                       `json:"paymentId,omitempty"`
	ExternalTransactionID  string                       `json:"externalTransactionId,omitempty"`
	ExternalSubscriptionID string                       `json:"externalSubscriptionId,omitempty"`
	SubscriptionID         string                       `json:"subscriptionId,omitempty"`
	Status                 string                       `json:"status"`
	PaymentType            string                       `json:"paymentType,omitempty"`
	Amount                 *decimal.Decimal             `json:"amount,omitempty"`
	Currency               string                       `json:"currency,omitempty"`
	PaymentGateway         string                       `json:"paymentGateway,omitempty"`
	SubscriptionDetails    *gateway.SubscriptionDetails `json:"subscriptionDetails,omitempty"`
	ErrorMessage           string                       `json:"errorMessage,omitempty"`
	ErrorCode              string                       `json:"errorCode,omitempty"`
	CreatedAt              *time.Time                   `json:"createdAt,omitempty"`
	ProcessedAt            *time.Time                   `json:"processedAt,omitempty"`
	Metadata               map[string]any               `json:"metadata,omitempty"`
}

// ListResult is one page of payments plus the cursor for the next page.
type ListResult struct {
	Payments []Result `json:"payments"`
	Cursor   string   `json:"cursor,omitempty"`
}

func resultFromPayment(p *models.Payment) Result {
	amount := p.Amount
	created := p.CreatedAt
	res := Result{
		Success:        true,
		PaymentID:      p.PaymentID,
		Status:         string(p.Status),
		PaymentType:    string(p.Type),
		Amount:         &amount,
		Currency:       p.Currency,
		PaymentGateway: p.PaymentGateway,
		CreatedAt:      &created,
		ProcessedAt:    p.ProcessedAt,
	}
	if p.ExternalTransactionID != nil {
		res.ExternalTransactionID = *p.ExternalTransactionID
	}
	if p.ExternalSubscriptionID != nil {
		res.ExternalSubscriptionID = *p.ExternalSubscriptionID
	}
	if p.SubscriptionID != nil {
		res.SubscriptionID = p.SubscriptionID.String()
	}
	return res
}

func resultsFromPayments(rows []models.Payment) []Result {
	out := make([]Result, 0, len(rows))
	for i := range rows {
		out = append(out, resultFromPayment(&rows[i]))
	}
	return out
}

// PaymentTypes lists the accepted payment types.
func PaymentTypes() []enums.PaymentType {
	return enums.ValidPaymentTypes()
}
