package models

import (
	"time"

	"github.com/openbillingstore/billing-core/pkg/enums"
)

// Product is sold by exactly one tenant service.
type Product struct {
	ProductID       string                 `gorm:"column:product_id;type:varchar(10);primaryKey"`
	ServiceID       string                 `gorm:"column:service_id;not null;index"`
	Name            string                 `gorm:"column:name;not null"`
	Description     *string                `gorm:"column:description"`
	ImageURL        *string                `gorm:"column:image_url"`
	IsActive        bool                   `gorm:"column:is_active;not null;default:true"`
	Type            enums.ProductType      `gorm:"column:type;not null"`
	BillingInterval *enums.BillingInterval `gorm:"column:billing_interval"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
