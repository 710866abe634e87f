package enums

import "fmt"

// ProviderKind is the capability class of a payment provider.
type ProviderKind string

const (
	// ProviderSessionBased needs a pending payment session before an instrument can be entered.
	ProviderSessionBased ProviderKind = "session"
	// ProviderWalletHosted collects the instrument in its own widget and never uses the generic session.
	ProviderWalletHosted ProviderKind = "wallet"
	ProviderGeneric      ProviderKind = "generic"
)

var validProviderKinds = []ProviderKind{
	ProviderSessionBased,
	ProviderWalletHosted,
	ProviderGeneric,
}

// String implements fmt.Stringer.
func (p ProviderKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProviderKind.
func (p ProviderKind) IsValid() bool {
	for _, candidate := range validProviderKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProviderKind converts raw input into a ProviderKind.
func ParseProviderKind(value string) (ProviderKind, error) {
	for _, candidate := range validProviderKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider kind %q", value)
}
