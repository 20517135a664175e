package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/money"
)

type countryStore interface {
	FindActiveCountry(ctx context.Context, code string) (*models.Country, error)
}

// TaxResult carries the amounts of a tax calculation, rounded half-up to the
// currency's minor units.
type TaxResult struct {
	BaseAmount   decimal.Decimal
	TaxRate      decimal.Decimal
	TaxAmount    decimal.Decimal
	TotalAmount  decimal.Decimal
	CurrencyCode string
	Country      *models.Country
}

// TaxCalculator resolves a country's tax rate and applies it to an amount.
type TaxCalculator interface {
	Calculate(ctx context.Context, amount decimal.Decimal, countryCode, currencyCode string) (*TaxResult, error)
}

type taxCalculator struct {
	store countryStore
}

// NewTaxCalculator builds a calculator backed by the country table.
func NewTaxCalculator(store countryStore) (TaxCalculator, error) {
	if store == nil {
		return nil, fmt.Errorf("country store required")
	}
	return &taxCalculator{store: store}, nil
}

// Calculate taxes amount at the country's rate. An empty currencyCode rounds
// with the resolved country's own currency.
func (c *taxCalculator) Calculate(ctx context.Context, amount decimal.Decimal, countryCode, currencyCode string) (*TaxResult, error) {
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	countryCode = normalizeCountry(countryCode)

	country, err := c.lookup(ctx, countryCode)
	if err != nil {
		return nil, err
	}
	if country == nil && countryCode != enums.FallbackCountryCode {
		country, err = c.lookup(ctx, enums.FallbackCountryCode)
		if err != nil {
			return nil, err
		}
	}
	if country == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tax info not found")
	}

	currency := strings.ToUpper(strings.TrimSpace(currencyCode))
	if currency == "" {
		currency = strings.ToUpper(country.CurrencyCode)
	}

	base := money.Round(amount, currency)
	tax := money.Round(base.Mul(country.TaxRate), currency)
	return &TaxResult{
		BaseAmount:   base,
		TaxRate:      country.TaxRate,
		TaxAmount:    tax,
		TotalAmount:  base.Add(tax),
		CurrencyCode: currency,
		Country:      country,
	}, nil
}

func (c *taxCalculator) lookup(ctx context.Context, code string) (*models.Country, error) {
	country, err := c.store.FindActiveCountry(ctx, code)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load country")
	}
	return country, nil
}
