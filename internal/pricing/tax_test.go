package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/pkg/db/models"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

type stubCountryStore struct {
	countries map[string]*models.Country
}

func (s *stubCountryStore) FindActiveCountry(_ context.Context, code string) (*models.Country, error) {
	if country, ok := s.countries[code]; ok {
		return country, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newCountryStore() *stubCountryStore {
	return &stubCountryStore{countries: map[string]*models.Country{
		"US": {Code: "US", CountryName: "United States", CurrencyCode: "USD", TaxRate: dec("0.0875"), IsActive: true},
		"JP": {Code: "JP", CountryName: "Japan", CurrencyCode: "JPY", TaxRate: dec("0.1"), IsActive: true},
	}}
}

func TestCalculateRoundsHalfUp(t *testing.T) {
	calc, err := NewTaxCalculator(newCountryStore())
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}

	tests := []struct {
		name     string
		amount   string
		country  string
		currency string
		tax      string
		total    string
	}{
		{"us standard", "99.99", "US", "USD", "8.75", "108.74"},
		{"us half cent", "10.00", "US", "USD", "0.88", "10.88"},
		{"zero", "0", "US", "USD", "0", "0"},
		{"yen has no minor units", "1255", "JP", "JPY", "126", "1381"},
		{"country currency by default", "1255", "JP", "", "126", "1381"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Calculate(context.Background(), dec(tt.amount), tt.country, tt.currency)
			if err != nil {
				t.Fatalf("calculate: %v", err)
			}
			if !got.TaxAmount.Equal(dec(tt.tax)) {
				t.Fatalf("tax: expected %s got %s", tt.tax, got.TaxAmount)
			}
			if !got.TotalAmount.Equal(dec(tt.total)) {
				t.Fatalf("total: expected %s got %s", tt.total, got.TotalAmount)
			}
			if !got.TotalAmount.Equal(got.BaseAmount.Add(got.TaxAmount)) {
				t.Fatalf("total must equal base + tax")
			}
		})
	}
}

func TestCalculateFallsBackToUS(t *testing.T) {
	calc, _ := NewTaxCalculator(newCountryStore())

	got, err := calc.Calculate(context.Background(), dec("99.99"), "de", "USD")
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got.Country.Code != "US" || !got.TaxRate.Equal(dec("0.0875")) {
		t.Fatalf("expected US fallback, got %s at %s", got.Country.Code, got.TaxRate)
	}
}

func TestCalculateNotFound(t *testing.T) {
	calc, _ := NewTaxCalculator(&stubCountryStore{})

	_, err := calc.Calculate(context.Background(), decimal.NewFromInt(10), "DE", "EUR")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCalculateRejectsNegativeAmount(t *testing.T) {
	calc, _ := NewTaxCalculator(newCountryStore())

	_, err := calc.Calculate(context.Background(), dec("-1"), "US", "USD")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
