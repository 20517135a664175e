package gateway

import (
	"strings"

	"github.com/openbillingstore/billing-core/pkg/enums"
)

var providerStatuses = map[string]enums.PaymentStatus{
	"requires_confirmation": enums.PaymentStatusPending,
	"created":               enums.PaymentStatusPending,
	"processing":            enums.PaymentStatusProcessing,
	"succeeded":             enums.PaymentStatusCompleted,
	"completed":             enums.PaymentStatusCompleted,
	"failed":                enums.PaymentStatusFailed,
	"canceled":              enums.PaymentStatusCancelled,
	"cancelled":             enums.PaymentStatusCancelled,
	"refunded":              enums.PaymentStatusRefunded,
}

// MapStatus canonicalizes a provider status. It is total: anything it does not
// recognize maps to PENDING.
func MapStatus(raw string) enums.PaymentStatus {
	if status, ok := providerStatuses[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return enums.PaymentStatusPending
}
