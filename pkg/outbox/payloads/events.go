package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/pkg/enums"
)

// OrderCreatedEvent carries the priced snapshot of a new order.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID       `json:"order_id" validate:"required"`
	OrderNumber  string          `json:"order_number" validate:"required"`
	ServiceID    string          `json:"service_id"`
	ProductID    string          `json:"product_id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         enums.OrderType `json:"type"`
	CurrencyCode string          `json:"currency_code"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// OrderStatusChangedEvent is emitted when payment activity moves an order.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id" validate:"required"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to" validate:"required"`
	PaymentID   string            `json:"payment_id,omitempty"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// PaymentCreatedEvent is emitted when a provider accepted a new payment.
type PaymentCreatedEvent struct {
	PaymentID             string              `json:"payment_id" validate:"required"`
	UserID                uuid.UUID           `json:"user_id"`
	OrderID               *uuid.UUID          `json:"order_id,omitempty"`
	SubscriptionID        *uuid.UUID          `json:"subscription_id,omitempty"`
	Provider              string              `json:"provider" validate:"required"`
	Type                  enums.PaymentType   `json:"type"`
	Status                enums.PaymentStatus `json:"status" validate:"required"`
	Amount                decimal.Decimal     `json:"amount"`
	Currency              string              `json:"currency"`
	ExternalTransactionID string              `json:"external_transaction_id,omitempty"`
}

// PaymentStatusChangedEvent reports a forward move in the payment state machine.
type PaymentStatusChangedEvent struct {
	PaymentID string              `json:"payment_id" validate:"required"`
	Provider  string              `json:"provider"`
	From      enums.PaymentStatus `json:"from"`
	To        enums.PaymentStatus `json:"to" validate:"required"`
	Source    string              `json:"source"`
	ChangedAt time.Time           `json:"changed_at"`
}

// SubscriptionCreatedEvent is emitted when a recurring payment opens a subscription.
type SubscriptionCreatedEvent struct {
	SubscriptionID         uuid.UUID                `json:"subscription_id" validate:"required"`
	ExternalSubscriptionID string                   `json:"external_subscription_id"`
	UserID                 uuid.UUID                `json:"user_id"`
	ProductID              string                   `json:"product_id"`
	Provider               string                   `json:"provider"`
	Status                 enums.SubscriptionStatus `json:"status" validate:"required"`
}

// SubscriptionStatusChangedEvent is emitted on cancellation and provider syncs.
type SubscriptionStatusChangedEvent struct {
	SubscriptionID         uuid.UUID                `json:"subscription_id" validate:"required"`
	ExternalSubscriptionID string                   `json:"external_subscription_id"`
	From                   enums.SubscriptionStatus `json:"from"`
	To                     enums.SubscriptionStatus `json:"to" validate:"required"`
	Reason                 string                   `json:"reason,omitempty"`
	ChangedAt              time.Time                `json:"changed_at"`
}
