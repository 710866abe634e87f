package enums

import "fmt"

// PriceType distinguishes upfront shipping prices from ones computed per cart.
type PriceType string

const (
	PriceTypeFlat       PriceType = "flat"
	PriceTypeCalculated PriceType = "calculated"
)

var validPriceTypes = []PriceType{
	PriceTypeFlat,
	PriceTypeCalculated,
}

// String implements fmt.Stringer.
func (p PriceType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PriceType.
func (p PriceType) IsValid() bool {
	for _, candidate := range validPriceTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePriceType converts raw input into a PriceType.
func ParsePriceType(value string) (PriceType, error) {
	for _, candidate := range validPriceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid price type %q", value)
}
