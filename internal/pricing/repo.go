package pricing

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/pkg/db/models"
)

// Repository reads localized prices and country tax rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a pricing repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindActivePrice returns the active price row whose effective window contains
// at. When windows overlap the most recent effective_from wins.
func (r *Repository) FindActivePrice(ctx context.Context, productID, countryCode string, at time.Time) (*models.ProductPriceByCountry, error) {
	var row models.ProductPriceByCountry
	at = at.UTC()
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND country_code = ? AND is_active = ?", productID, countryCode, true).
		Where("effective_from <= ?", at).
		Where("effective_to IS NULL OR effective_to > ?", at).
		Order("effective_from DESC").
		Limit(1).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindActiveCountry loads an active country by its two-letter code.
func (r *Repository) FindActiveCountry(ctx context.Context, code string) (*models.Country, error) {
	var country models.Country
	err := r.db.WithContext(ctx).
		Where("code = ? AND is_active = ?", code, true).
		Take(&country).Error
	if err != nil {
		return nil, err
	}
	return &country, nil
}
