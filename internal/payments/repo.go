package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	"github.com/openbillingstore/billing-core/pkg/pagination"
)

// Repository defines persistence operations for payments. Lookups are keyed
// by indexed columns only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	Save(ctx context.Context, payment *models.Payment) error
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error)
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Payment, error)
	FindLatestByExternalSubscriptionID(ctx context.Context, externalID string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params listParams) ([]models.Payment, *pagination.Cursor, error)
	ListByStatus(ctx context.Context, status enums.PaymentStatus, params listParams) ([]models.Payment, *pagination.Cursor, error)
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, externalID string) ([]models.Payment, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error)
	MarkReconciled(ctx context.Context, id uuid.UUID, at time.Time) error
}

type listParams struct {
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) Save(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByIdempotencyKey looks the key up within one user's payments.
func (r *repository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("user_id = ? AND idempotency_key = ?", userID, key).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindLatestByExternalSubscriptionID returns the newest payment carrying the
// provider subscription id.
func (r *repository) FindLatestByExternalSubscriptionID(ctx context.Context, externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("external_subscription_id = ?", externalID).
		Order("created_at DESC, id DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params listParams) ([]models.Payment, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("user_id = ?", userID)
	return r.page(query, params)
}

func (r *repository) ListByStatus(ctx context.Context, status enums.PaymentStatus, params listParams) ([]models.Payment, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("status = ?", status)
	return r.page(query, params)
}

func (r *repository) page(query *gorm.DB, params listParams) ([]models.Payment, *pagination.Cursor, error) {
	if params.Cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}
	var payments []models.Payment
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&payments).Error; err != nil {
		return nil, nil, err
	}
	payments, next := pagination.Trim(payments, params.Limit, func(p models.Payment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return payments, next, nil
}

// ListBySubscription returns payments linked to the record or carrying its
// provider id, newest first.
func (r *repository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, externalID string) ([]models.Payment, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if externalID != "" {
		query = query.Where("subscription_id = ? OR external_subscription_id = ?", subscriptionID, externalID)
	} else {
		query = query.Where("subscription_id = ?", subscriptionID)
	}
	var payments []models.Payment
	if err := query.Order("created_at DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListStale returns unsettled payments created before olderThan. Rows never
// reconciled come first, then the least recently reconciled, so payments the
// provider keeps pending rotate to the back of the queue.
func (r *repository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusProcessing}).
		Where("created_at < ?", olderThan).
		Order("reconciled_at IS NOT NULL, reconciled_at ASC, created_at ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// MarkReconciled stamps a sync attempt without touching updated_at.
func (r *repository) MarkReconciled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		UpdateColumn("reconciled_at", at).Error
}
