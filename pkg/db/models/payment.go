package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/openbillingstore/billing-core/pkg/db/types"
	"github.com/openbillingstore/billing-core/pkg/enums"
)

// Payment records one settlement attempt through an external provider.
type Payment struct {
	ID                     uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID              string              `gorm:"column:payment_id;not null;uniqueIndex"`
	OrderID                *uuid.UUID          `gorm:"column:order_id;type:uuid;index"`
	SubscriptionID         *uuid.UUID          `gorm:"column:subscription_id;type:uuid;index"`
	UserID                 uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:ux_payments_user_idempotency,priority:1"`
	Amount                 decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency               string              `gorm:"column:currency;type:varchar(3);not null"`
	Method                 *string             `gorm:"column:method"`
	Status                 enums.PaymentStatus `gorm:"column:status;not null;index"`
	Type                   enums.PaymentType   `gorm:"column:type;not null"`
	ExternalTransactionID  *string             `gorm:"column:external_transaction_id"`
	ExternalSubscriptionID *string             `gorm:"column:external_subscription_id;index"`
	PaymentGateway         string              `gorm:"column:payment_gateway;not null"`
	FailureReason          *string             `gorm:"column:failure_reason"`
	IdempotencyKey         *string             `gorm:"column:idempotency_key;uniqueIndex:ux_payments_user_idempotency,priority:2"`
	RequestHash            *string             `gorm:"column:request_hash"`
	Metadata               dbtypes.Metadata    `gorm:"column:metadata;type:jsonb;not null"`
	ProcessedAt            *time.Time          `gorm:"column:processed_at"`
	ReconciledAt           *time.Time          `gorm:"column:reconciled_at"`
	CreatedAt              time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.Metadata == nil {
		p.Metadata = dbtypes.Metadata{}
	}
	return nil
}

// ExternalReference returns the provider id used for follow-up calls, falling
// back to our own payment id.
func (p Payment) ExternalReference() string {
	if p.ExternalTransactionID != nil && *p.ExternalTransactionID != "" {
		return *p.ExternalTransactionID
	}
	return p.PaymentID
}
