package enums

import (
	"fmt"
	"strings"
)

// BillingInterval defines the cadence of a subscription product.
type BillingInterval string

const (
	BillingIntervalDaily     BillingInterval = "DAILY"
	BillingIntervalWeekly    BillingInterval = "WEEKLY"
	BillingIntervalMonthly   BillingInterval = "MONTHLY"
	BillingIntervalQuarterly BillingInterval = "QUARTERLY"
	BillingIntervalYearly    BillingInterval = "YEARLY"
)

var validBillingIntervals = []BillingInterval{
	BillingIntervalDaily,
	BillingIntervalWeekly,
	BillingIntervalMonthly,
	BillingIntervalQuarterly,
	BillingIntervalYearly,
}

// String implements fmt.Stringer.
func (b BillingInterval) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingInterval.
func (b BillingInterval) IsValid() bool {
	for _, candidate := range validBillingIntervals {
		if candidate == b {
			return true
		}
	}
	return false
}

// GatewayInterval returns the provider-neutral interval unit and count
// (day, week, month, year) used when creating subscriptions.
func (b BillingInterval) GatewayInterval() (string, int) {
	switch b {
	case BillingIntervalDaily:
		return GatewayIntervalDay, 1
	case BillingIntervalWeekly:
		return GatewayIntervalWeek, 1
	case BillingIntervalQuarterly:
		return GatewayIntervalMonth, 3
	case BillingIntervalYearly:
		return GatewayIntervalYear, 1
	default:
		return GatewayIntervalMonth, 1
	}
}

// ParseBillingInterval converts raw input into a BillingInterval.
func ParseBillingInterval(value string) (BillingInterval, error) {
	for _, candidate := range validBillingIntervals {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing interval %q", value)
}

const (
	GatewayIntervalDay   = "day"
	GatewayIntervalWeek  = "week"
	GatewayIntervalMonth = "month"
	GatewayIntervalYear  = "year"
)

// IsGatewayInterval reports whether value is one of day, week, month or year.
func IsGatewayInterval(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case GatewayIntervalDay, GatewayIntervalWeek, GatewayIntervalMonth, GatewayIntervalYear:
		return true
	}
	return false
}
