package enums

import "testing"

func TestStepOrdering(t *testing.T) {
	steps := Steps()
	for i, step := range steps {
		if step.Index() != i {
			t.Fatalf("step %s: expected index %d, got %d", step, i, step.Index())
		}
	}
	if !StepAddresses.Before(StepReview) {
		t.Fatal("addresses should come before review")
	}
	if StepPayment.Before(StepPayment) {
		t.Fatal("a step is not before itself")
	}
	if Step("shipping").Before(StepReview) {
		t.Fatal("unknown steps are not ordered")
	}
}

func TestParseStep(t *testing.T) {
	got, err := ParseStep("delivery")
	if err != nil || got != StepDelivery {
		t.Fatalf("expected delivery, got %q err=%v", got, err)
	}
	if _, err := ParseStep("Delivery"); err == nil {
		t.Fatal("expected case-sensitive parse to fail")
	}
	if Step("bogus").IsValid() {
		t.Fatal("bogus step should be invalid")
	}
}
