package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/pkg/enums"
)

// Subscription is a recurring billing agreement for a user and product.
type Subscription struct {
	ID                     uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID                 uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID              string                   `gorm:"column:product_id;not null"`
	FirstOrderID           *uuid.UUID               `gorm:"column:first_order_id;type:uuid"`
	LatestOrderID          *uuid.UUID               `gorm:"column:latest_order_id;type:uuid"`
	SubscriptionPlan       string                   `gorm:"column:subscription_plan;not null"`
	BillingCycle           string                   `gorm:"column:billing_cycle;not null"`
	ExternalSubscriptionID *string                  `gorm:"column:external_subscription_id;uniqueIndex"`
	PaymentGateway         string                   `gorm:"column:payment_gateway;not null"`
	Status                 enums.SubscriptionStatus `gorm:"column:status;not null"`
	StartDate              time.Time                `gorm:"column:start_date;not null"`
	EndDate                *time.Time               `gorm:"column:end_date"`
	NextBillingDate        time.Time                `gorm:"column:next_billing_date;not null"`
	TrialEndDate           *time.Time               `gorm:"column:trial_end_date"`
	CancelledAt            *time.Time               `gorm:"column:cancelled_at"`
	CancelReason           *string                  `gorm:"column:cancel_reason"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
