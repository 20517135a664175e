package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductPriceByCountry is a time-windowed localized price, optionally discounted.
type ProductPriceByCountry struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductID          string           `gorm:"column:product_id;not null;index:ix_prices_product_country"`
	CountryCode        string           `gorm:"column:country_code;type:varchar(2);not null;index:ix_prices_product_country"`
	CountryName        string           `gorm:"column:country_name;not null"`
	Price              decimal.Decimal  `gorm:"column:price;type:numeric(10,3);not null"`
	CurrencyCode       string           `gorm:"column:currency_code;type:varchar(3);not null"`
	DiscountPercentage *decimal.Decimal `gorm:"column:discount_percentage;type:numeric(5,2)"`
	DiscountedPrice    *decimal.Decimal `gorm:"column:discounted_price;type:numeric(10,3)"`
	IsActive           bool             `gorm:"column:is_active;not null;default:true"`
	EffectiveFrom      time.Time        `gorm:"column:effective_from;not null"`
	EffectiveTo        *time.Time       `gorm:"column:effective_to"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductPriceByCountry) TableName() string { return "product_prices_by_country" }

func (p *ProductPriceByCountry) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
