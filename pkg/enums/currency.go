package enums

// DefaultCurrency is applied when a request omits its currency.
const DefaultCurrency = "USD"

// FallbackCountryCode is consulted when a country has no pricing or tax row.
const FallbackCountryCode = "US"
