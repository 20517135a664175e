package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
)

// Repository exposes tenant-scoped lookups for services, products and users.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindService loads an active tenant service by its natural id.
func (r *Repository) FindService(ctx context.Context, serviceID string) (*models.Service, error) {
	var service models.Service
	err := r.db.WithContext(ctx).
		Where("service_id = ? AND status = ?", serviceID, enums.ServiceStatusActive).
		First(&service).Error
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// FindProduct loads a product owned by serviceID. A product of another
// tenant is reported as gorm.ErrRecordNotFound like any other miss.
func (r *Repository) FindProduct(ctx context.Context, productID, serviceID string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND service_id = ?", productID, serviceID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindUser loads a user by its tenant-scoped natural id.
func (r *Repository) FindUser(ctx context.Context, userID, serviceID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND service_id = ?", userID, serviceID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByID loads a user by its UUID.
func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
