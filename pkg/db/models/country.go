package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Country carries the tax rate and currency of a market.
type Country struct {
	Code         string          `gorm:"column:code;type:varchar(2);primaryKey"`
	CountryName  string          `gorm:"column:country_name;not null"`
	StateCode    *string         `gorm:"column:state_code"`
	StateName    *string         `gorm:"column:state_name"`
	CurrencyCode string          `gorm:"column:currency_code;type:varchar(3);not null"`
	TaxRate      decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,4);not null"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Country) TableName() string { return "countries" }
