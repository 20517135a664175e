package subscriptions

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/models"
)

// Repository defines persistence operations for subscription records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
	Save(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	FindByReference(ctx context.Context, ref string) (*models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a subscriptions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *repository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByExternalID uses the unique index on external_subscription_id.
func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("external_subscription_id = ?", externalID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByReference accepts either the record uuid or the provider subscription id.
func (r *repository) FindByReference(ctx context.Context, ref string) (*models.Subscription, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		sub, err := r.FindByID(ctx, id)
		if err == nil {
			return sub, nil
		}
		if !db.IsNotFound(err) {
			return nil, err
		}
	}
	return r.FindByExternalID(ctx, ref)
}
