package models

import (
	"time"

	"github.com/openbillingstore/billing-core/pkg/enums"
)

// Service is a tenant platform that owns users and products.
type Service struct {
	ServiceID   string              `gorm:"column:service_id;type:varchar(10);primaryKey"`
	ServiceName string              `gorm:"column:service_name;not null"`
	Description *string             `gorm:"column:description"`
	APIKey      string              `gorm:"column:api_key;not null;uniqueIndex"`
	Status      enums.ServiceStatus `gorm:"column:status;not null;default:'ACTIVE'"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Service) TableName() string { return "services" }
