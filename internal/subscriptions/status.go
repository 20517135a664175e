package subscriptions

import (
	"strings"

	"github.com/openbillingstore/billing-core/pkg/enums"
)

// MapProviderStatus folds Stripe, PayPal and Square subscription vocabularies
// into the canonical SubscriptionStatus. Unknown values map to ACTIVE.
func MapProviderStatus(raw string) enums.SubscriptionStatus {
	normalized := normalizeStatus(raw)
	if normalized == "" {
		return enums.SubscriptionStatusActive
	}
	if mapped, ok := statusAliases[normalized]; ok {
		return mapped
	}
	if parsed, err := enums.ParseSubscriptionStatus(normalized); err == nil {
		return parsed
	}
	return enums.SubscriptionStatusActive
}

// IsActiveStatus reports whether the status still grants access.
func IsActiveStatus(status enums.SubscriptionStatus) bool {
	return status == enums.SubscriptionStatusActive || status == enums.SubscriptionStatusTrial
}

func normalizeStatus(raw string) string {
	normalized := strings.TrimSpace(raw)
	normalized = strings.ToUpper(normalized)
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	return normalized
}

var statusAliases = map[string]enums.SubscriptionStatus{
	"PENDING":            enums.SubscriptionStatusTrial,
	"TRIALING":           enums.SubscriptionStatusTrial,
	"APPROVAL_PENDING":   enums.SubscriptionStatusTrial,
	"DEACTIVATED":        enums.SubscriptionStatusCancelled,
	"COMPLETED":          enums.SubscriptionStatusCancelled,
	"CANCELING":          enums.SubscriptionStatusCancelled,
	"CANCELLING":         enums.SubscriptionStatusCancelled,
	"CANCELED":           enums.SubscriptionStatusCancelled,
	"SUSPENDED":          enums.SubscriptionStatusPaused,
	"INCOMPLETE_EXPIRED": enums.SubscriptionStatusExpired,
}
