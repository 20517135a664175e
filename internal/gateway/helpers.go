package gateway

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/money"
)

// Safely runs fn and converts a returned error or a panic into a failed
// Response tagged with code.
func Safely(code string, fn func() (Response, error)) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = Failure(code, fmt.Errorf("panic: %v", r))
		}
	}()
	out, err := fn()
	if err != nil {
		return Failure(code, err)
	}
	return out
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	return nil
}

// ValidateCurrency requires a known ISO-4217 code and returns it upper-cased.
func ValidateCurrency(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !money.IsKnownCurrency(normalized) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", code))
	}
	return normalized, nil
}

// NewPaymentID mints the external-facing payment identifier.
func NewPaymentID() string {
	return "pay_" + uuid.NewString()
}

// NewIdempotencyKey returns a provider idempotency key with the given prefix.
func NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "billing"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// DefaultCurrency falls back to USD for blank input.
func DefaultCurrency(code string) string {
	if strings.TrimSpace(code) == "" {
		return "USD"
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
