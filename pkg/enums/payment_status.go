package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus is the canonical lifecycle of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusCancelled,
	PaymentStatusRefunded,
}

// PENDING may settle directly to COMPLETED when a provider captures synchronously.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further forward move exists besides refunds.
func (p PaymentStatus) IsTerminal() bool {
	switch p {
	case PaymentStatusCompleted, PaymentStatusRefunded, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a forward move from p. Staying put is allowed.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if p == next {
		return true
	}
	for _, candidate := range paymentTransitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ValidPaymentStatuses returns a copy of the known statuses.
func ValidPaymentStatuses() []PaymentStatus {
	out := make([]PaymentStatus, len(validPaymentStatuses))
	copy(out, validPaymentStatuses)
	return out
}

// ParsePaymentStatus converts raw input into a PaymentStatus, ignoring case.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentType distinguishes single charges from recurring billing.
type PaymentType string

const (
	PaymentTypeOneTime   PaymentType = "ONE_TIME"
	PaymentTypeRecurring PaymentType = "RECURRING"
)

func (p PaymentType) String() string {
	return string(p)
}

func (p PaymentType) IsValid() bool {
	return p == PaymentTypeOneTime || p == PaymentTypeRecurring
}

// ValidPaymentTypes lists the supported payment types.
func ValidPaymentTypes() []PaymentType {
	return []PaymentType{PaymentTypeOneTime, PaymentTypeRecurring}
}

// ParsePaymentType converts raw input into a PaymentType, defaulting to ONE_TIME when blank.
func ParsePaymentType(value string) (PaymentType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "" {
		return PaymentTypeOneTime, nil
	}
	candidate := PaymentType(normalized)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid payment type %q", value)
	}
	return candidate, nil
}
