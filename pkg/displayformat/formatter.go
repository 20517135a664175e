// Package displayformat renders computed amounts for people. It never rounds
// business values; callers pass amounts that are already final.
package displayformat

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/openbillingstore/billing-core/pkg/money"
)

// Formatter turns an amount into a locale-aware display string.
type Formatter interface {
	Format(amount decimal.Decimal, currencyCode, countryCode string) string
}

// LocaleFormatter formats with CLDR data for the country's most likely language.
type LocaleFormatter struct{}

func NewLocaleFormatter() *LocaleFormatter {
	return &LocaleFormatter{}
}

func (f *LocaleFormatter) Format(amount decimal.Decimal, currencyCode, countryCode string) string {
	unit, ok := money.Unit(currencyCode)
	if !ok {
		return strings.TrimSpace(money.String(amount, currencyCode) + " " + strings.ToUpper(currencyCode))
	}
	value, _ := money.Round(amount, currencyCode).Float64()
	return message.NewPrinter(localeFor(countryCode)).Sprint(currency.Symbol(unit.Amount(value)))
}

func localeFor(countryCode string) language.Tag {
	region, err := language.ParseRegion(strings.ToUpper(strings.TrimSpace(countryCode)))
	if err != nil {
		return language.AmericanEnglish
	}
	base, _ := language.Make("und-" + region.String()).Base()
	tag, err := language.Compose(base, region)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}
