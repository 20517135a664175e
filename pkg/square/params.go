package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// SubscriptionCreateParams contains the fields required to start a Square subscription.
// LocationID and PlanVariationID fall back to the client configuration.
type SubscriptionCreateParams struct {
	LocationID            string
	PlanVariationID       string
	CustomerID            string
	CardID                string
	IdempotencyKey        string
	StartDate             string
	TaxPercentage         string
	PriceOverrideAmount   int64
	PriceOverrideCurrency string
}

func (p SubscriptionCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateSubscriptionRequest {
	req := &sq.CreateSubscriptionRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		LocationID:     p.LocationID,
		CustomerID:     p.CustomerID,
	}
	if trimmed := strings.TrimSpace(p.PlanVariationID); trimmed != "" {
		req.PlanVariationID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.CardID); trimmed != "" {
		req.CardID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.StartDate); trimmed != "" {
		req.StartDate = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.TaxPercentage); trimmed != "" {
		req.TaxPercentage = ptrString(trimmed)
	}
	if p.PriceOverrideAmount > 0 {
		req.PriceOverrideMoney = moneyPtr(p.PriceOverrideAmount, p.PriceOverrideCurrency)
	}
	return req
}

// PaymentCreateParams encapsulates the inputs for a Square payment. Payments
// are created with autocomplete off so they can be completed or cancelled later.
type PaymentCreateParams struct {
	AmountMinor    int64
	Currency       string
	LocationID     string
	CustomerID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := false
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     ptrString(p.LocationID),
		CustomerID:     ptrString(p.CustomerID),
		SourceID:       p.SourceID,
		Autocomplete:   &autocomplete,
	}
	if p.AmountMinor > 0 {
		req.AmountMoney = moneyPtr(p.AmountMinor, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}

func fromMoney(m *sq.Money) (int64, string) {
	if m == nil {
		return 0, ""
	}
	var amount int64
	if a := m.GetAmount(); a != nil {
		amount = *a
	}
	var code string
	if c := m.GetCurrency(); c != nil {
		code = string(*c)
	}
	return amount, code
}
