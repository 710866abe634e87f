package enums

import "fmt"

// PaymentSessionStatus tracks a provider attempt bound to a cart.
type PaymentSessionStatus string

const (
	PaymentSessionPending      PaymentSessionStatus = "pending"
	PaymentSessionAuthorized   PaymentSessionStatus = "authorized"
	PaymentSessionRequiresMore PaymentSessionStatus = "requires_more"
	PaymentSessionError        PaymentSessionStatus = "error"
	PaymentSessionCanceled     PaymentSessionStatus = "canceled"
	PaymentSessionCaptured     PaymentSessionStatus = "captured"
)

var validPaymentSessionStatuses = []PaymentSessionStatus{
	PaymentSessionPending,
	PaymentSessionAuthorized,
	PaymentSessionRequiresMore,
	PaymentSessionError,
	PaymentSessionCanceled,
	PaymentSessionCaptured,
}

// String implements fmt.Stringer.
func (p PaymentSessionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentSessionStatus.
func (p PaymentSessionStatus) IsValid() bool {
	for _, candidate := range validPaymentSessionStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentSessionStatus converts raw input into a PaymentSessionStatus.
func ParsePaymentSessionStatus(value string) (PaymentSessionStatus, error) {
	for _, candidate := range validPaymentSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment session status %q", value)
}
