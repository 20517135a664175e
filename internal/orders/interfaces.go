package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
)

// Repository defines persistence operations for orders and the order sequence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, paidAt *time.Time) error
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
}
