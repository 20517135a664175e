package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/pkg/enums"
)

// Order snapshots price, tax and discount at creation. Amounts are never re-derived.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	ServiceID      string            `gorm:"column:service_id;not null"`
	ProductID      string            `gorm:"column:product_id;not null"`
	SubscriptionID *uuid.UUID        `gorm:"column:subscription_id;type:uuid"`
	CountryCode    string            `gorm:"column:country_code;type:varchar(2);not null"`
	CurrencyCode   string            `gorm:"column:currency_code;type:varchar(3);not null"`
	ProductPrice   decimal.Decimal   `gorm:"column:product_price;type:numeric(12,2);not null"`
	TaxAmount      decimal.Decimal   `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal   `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount    decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CouponNumber   *string           `gorm:"column:coupon_number"`
	Status         enums.OrderStatus `gorm:"column:status;not null;default:'PENDING'"`
	Type           enums.OrderType   `gorm:"column:type;not null"`
	DueDate        *time.Time        `gorm:"column:due_date"`
	PaidAt         *time.Time        `gorm:"column:paid_at"`
	BillingAddress *string           `gorm:"column:billing_address"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderSequence exists only to mint increasing integers through the identity column.
type OrderSequence struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
}

func (OrderSequence) TableName() string { return "order_sequences" }
