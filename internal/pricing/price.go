package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/money"
)

type priceStore interface {
	FindActivePrice(ctx context.Context, productID, countryCode string, at time.Time) (*models.ProductPriceByCountry, error)
}

// ResolvedPrice is the localized price of a product in one country.
type ResolvedPrice struct {
	OriginalPrice      decimal.Decimal
	DiscountPercentage decimal.Decimal
	DiscountAmount     decimal.Decimal
	FinalPrice         decimal.Decimal
	CurrencyCode       string
	// CountryCode is the country whose row was used, which is the fallback
	// country when the requested one has no active price.
	CountryCode string
	Source      *models.ProductPriceByCountry
}

// PriceResolver resolves the localized, possibly discounted product price.
type PriceResolver interface {
	Resolve(ctx context.Context, productID, countryCode string) (*ResolvedPrice, error)
}

type priceResolver struct {
	store priceStore
	now   func() time.Time
}

// NewPriceResolver builds a resolver. A nil clock uses time.Now.
func NewPriceResolver(store priceStore, clock func() time.Time) (PriceResolver, error) {
	if store == nil {
		return nil, fmt.Errorf("price store required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &priceResolver{store: store, now: clock}, nil
}

func (r *priceResolver) Resolve(ctx context.Context, productID, countryCode string) (*ResolvedPrice, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	countryCode = normalizeCountry(countryCode)
	at := r.now()

	row, err := r.lookup(ctx, productID, countryCode, at)
	if err != nil {
		return nil, err
	}
	if row == nil && countryCode != enums.FallbackCountryCode {
		row, err = r.lookup(ctx, productID, enums.FallbackCountryCode, at)
		if err != nil {
			return nil, err
		}
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pricing not found")
	}

	return priceFromRow(row), nil
}

func (r *priceResolver) lookup(ctx context.Context, productID, countryCode string, at time.Time) (*models.ProductPriceByCountry, error) {
	row, err := r.store.FindActivePrice(ctx, productID, countryCode, at)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product price")
	}
	return row, nil
}

// priceFromRow applies the row's discount. A discounted price that is negative
// or above the list price is ignored so the final price never exceeds it.
func priceFromRow(row *models.ProductPriceByCountry) *ResolvedPrice {
	currency := strings.ToUpper(row.CurrencyCode)
	original := money.Round(row.Price, currency)

	result := &ResolvedPrice{
		OriginalPrice:      original,
		DiscountPercentage: decimal.Zero,
		DiscountAmount:     decimal.Zero,
		FinalPrice:         original,
		CurrencyCode:       currency,
		CountryCode:        row.CountryCode,
		Source:             row,
	}

	if row.DiscountedPrice == nil {
		return result
	}
	discounted := money.Round(*row.DiscountedPrice, currency)
	if discounted.IsNegative() || discounted.GreaterThan(original) {
		return result
	}

	result.FinalPrice = discounted
	result.DiscountAmount = original.Sub(discounted)
	if row.DiscountPercentage != nil {
		result.DiscountPercentage = *row.DiscountPercentage
	}
	return result
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
