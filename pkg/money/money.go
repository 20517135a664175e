// Package money rounds decimal amounts to the minor units of their currency.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const defaultScale int32 = 2

// Unit parses an ISO-4217 code, ignoring case and surrounding space.
func Unit(code string) (currency.Unit, bool) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return currency.Unit{}, false
	}
	return unit, true
}

// IsKnownCurrency reports whether code is a recognized ISO-4217 currency.
func IsKnownCurrency(code string) bool {
	_, ok := Unit(code)
	return ok
}

// Scale returns the number of minor-unit digits for code (USD 2, JPY 0).
// Unknown codes use two digits.
func Scale(code string) int32 {
	unit, ok := Unit(code)
	if !ok {
		return defaultScale
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// Round rounds half away from zero to the currency's minor units.
func Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Scale(code))
}

// ToMinorUnits converts an amount to the integer representation providers expect (cents for USD).
func ToMinorUnits(amount decimal.Decimal, code string) int64 {
	return amount.Shift(Scale(code)).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(value int64, code string) decimal.Decimal {
	return decimal.New(value, -Scale(code))
}

// String renders amount with exactly the currency's minor-unit digits.
func String(amount decimal.Decimal, code string) string {
	return amount.StringFixed(Scale(code))
}
