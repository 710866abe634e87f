package enums

import "fmt"

// Step identifies one panel of the checkout flow. Steps are totally ordered.
type Step string

const (
	StepAddresses Step = "addresses"
	StepDelivery  Step = "delivery"
	StepPayment   Step = "payment"
	StepReview    Step = "review"
)

// validSteps is ordered; Index relies on it.
var validSteps = []Step{
	StepAddresses,
	StepDelivery,
	StepPayment,
	StepReview,
}

// Steps returns the checkout steps in flow order.
func Steps() []Step {
	out := make([]Step, len(validSteps))
	copy(out, validSteps)
	return out
}

// String implements fmt.Stringer.
func (s Step) String() string {
	return string(s)
}

// IsValid reports whether the value is a known Step.
func (s Step) IsValid() bool {
	return s.Index() >= 0
}

// Index returns the position of the step in the flow, or -1 when unknown.
func (s Step) Index() int {
	for i, candidate := range validSteps {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Before reports whether s comes strictly earlier in the flow than other.
func (s Step) Before(other Step) bool {
	i, j := s.Index(), other.Index()
	return i >= 0 && j >= 0 && i < j
}

// ParseStep converts raw input into a Step.
func ParseStep(value string) (Step, error) {
	for _, candidate := range validSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid step %q", value)
}
