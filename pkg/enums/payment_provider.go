package enums

import "strings"

// PaymentProvider names an external processor. Names are stored upper-cased.
type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "STRIPE"
	PaymentProviderPayPal PaymentProvider = "PAYPAL"
	PaymentProviderSquare PaymentProvider = "SQUARE"
)

func (p PaymentProvider) String() string {
	return string(p)
}

// NormalizeProvider upper-cases and trims a provider name.
func NormalizeProvider(name string) PaymentProvider {
	return PaymentProvider(strings.ToUpper(strings.TrimSpace(name)))
}
