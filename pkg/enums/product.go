package enums

import "fmt"

// ProductType distinguishes one-off services from recurring ones.
type ProductType string

const (
	ProductTypeOneTimeService      ProductType = "ONE_TIME_SERVICE"
	ProductTypeSubscriptionService ProductType = "SUBSCRIPTION_SERVICE"
)

var validProductTypes = []ProductType{
	ProductTypeOneTimeService,
	ProductTypeSubscriptionService,
}

// String implements fmt.Stringer.
func (p ProductType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductType.
func (p ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// OrderType classifies the order created for a product of this type.
func (p ProductType) OrderType() OrderType {
	if p == ProductTypeSubscriptionService {
		return OrderTypeSubscriptionBilling
	}
	return OrderTypeOneTime
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}

// ServiceStatus marks whether a tenant service may transact.
type ServiceStatus string

const (
	ServiceStatusActive   ServiceStatus = "ACTIVE"
	ServiceStatusInactive ServiceStatus = "INACTIVE"
)

func (s ServiceStatus) IsValid() bool {
	return s == ServiceStatusActive || s == ServiceStatusInactive
}
