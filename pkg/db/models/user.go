package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an end customer of a tenant service. UserID is only unique within its service.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    string    `gorm:"column:user_id;not null;uniqueIndex:ux_users_user_service"`
	ServiceID string    `gorm:"column:service_id;not null;uniqueIndex:ux_users_user_service"`
	Email     string    `gorm:"column:email;not null"`
	FirstName *string   `gorm:"column:first_name"`
	LastName  *string   `gorm:"column:last_name"`
	Phone     *string   `gorm:"column:phone"`
	Role      string    `gorm:"column:role;not null;default:'USER'"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
