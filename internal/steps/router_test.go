package steps

import (
	"net/url"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

func TestNextTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current enums.Step
		event   Event
		want    enums.Step
	}{
		{"addresses saved", enums.StepAddresses, AddressesSaved, enums.StepDelivery},
		{"shipping submitted", enums.StepDelivery, ShippingSubmitted, enums.StepPayment},
		{"payment submitted", enums.StepPayment, PaymentSubmitted, enums.StepReview},
		{"wallet collected", enums.StepPayment, WalletCollected, enums.StepReview},
		{"edit earlier", enums.StepReview, Edit(enums.StepDelivery), enums.StepDelivery},
		{"edit same", enums.StepPayment, Edit(enums.StepPayment), enums.StepPayment},
		{"edit later is ignored", enums.StepDelivery, Edit(enums.StepReview), enums.StepDelivery},
		{"edit unknown target", enums.StepReview, Edit("bogus"), enums.StepReview},
		{"unknown current", enums.Step("bogus"), AddressesSaved, enums.Step("bogus")},
	}
	for _, tt := range tests {
		if got := Next(tt.current, tt.event); got != tt.want {
			t.Fatalf("%s: expected %s got %s", tt.name, tt.want, got)
		}
	}
}

func TestResolveDefaultsToFirstIncompleteStep(t *testing.T) {
	view := Resolve("/checkout", url.Values{}, Facts{HasShippingAddress: true})
	if view.Current != enums.StepDelivery {
		t.Fatalf("expected delivery, got %s", view.Current)
	}
	addresses, _ := view.Panel(enums.StepAddresses)
	if !addresses.Summary || addresses.EditLink == nil {
		t.Fatalf("expected addresses summary with edit link, got %+v", addresses)
	}
	delivery, _ := view.Panel(enums.StepDelivery)
	if !delivery.Open {
		t.Fatalf("expected delivery open")
	}
	payment, _ := view.Panel(enums.StepPayment)
	if payment.Open || payment.Summary {
		t.Fatalf("later panels should be closed, got %+v", payment)
	}
}

func TestResolveUnknownStepClosesEveryPanel(t *testing.T) {
	facts := Facts{HasShippingAddress: true, HasShippingMethod: true}
	view := Resolve("/checkout", url.Values{"step": {"shipping"}}, facts)
	if view.Current != "" {
		t.Fatalf("expected no current step, got %s", view.Current)
	}
	for _, panel := range view.Panels {
		if panel.Open {
			t.Fatalf("panel %s should not be open", panel.Step)
		}
	}
	delivery, _ := view.Panel(enums.StepDelivery)
	if !delivery.Summary {
		t.Fatalf("delivery has a method and should render its summary")
	}
	payment, _ := view.Panel(enums.StepPayment)
	if payment.Summary {
		t.Fatalf("payment summary requires payment data")
	}
}

func TestResolveSummaryIsGuardedByCartData(t *testing.T) {
	view := Resolve("/checkout", url.Values{"step": {"review"}}, Facts{HasShippingAddress: true})
	review, _ := view.Panel(enums.StepReview)
	if !review.Open {
		t.Fatalf("direct navigation to review must not be blocked")
	}
	delivery, _ := view.Panel(enums.StepDelivery)
	if delivery.Summary {
		t.Fatalf("delivery summary shown without a shipping method")
	}
}

func TestLinkToStepKeepsOtherParams(t *testing.T) {
	query := url.Values{"step": {"review"}, "utm_source": {"mail"}, "country": {"mx"}}
	link := LinkToStep("/mx/checkout", query, enums.StepDelivery)
	if link.Scroll {
		t.Fatalf("links must not reset scroll")
	}
	if !strings.HasPrefix(link.Href, "/mx/checkout?") {
		t.Fatalf("unexpected href %s", link.Href)
	}
	parsed, err := url.Parse(link.Href)
	if err != nil {
		t.Fatalf("parse href: %v", err)
	}
	got := parsed.Query()
	if got.Get("step") != "delivery" || got.Get("utm_source") != "mail" || got.Get("country") != "mx" {
		t.Fatalf("unexpected query %v", got)
	}
	if query.Get("step") != "review" {
		t.Fatalf("input query must not be mutated")
	}
}

func TestReachable(t *testing.T) {
	facts := Facts{HasShippingAddress: true}
	if !Reachable(enums.StepDelivery, facts) {
		t.Fatalf("delivery should be reachable with an address")
	}
	if Reachable(enums.StepPayment, facts) {
		t.Fatalf("payment should not be reachable without a shipping method")
	}
	if Reachable("bogus", facts) {
		t.Fatalf("unknown step is never reachable")
	}
}

func TestFactsFor(t *testing.T) {
	cart := &commerce.Cart{
		ShippingAddress: &commerce.Address{Address1: "Av. Reforma 1"},
		ShippingMethods: []commerce.ShippingMethod{{ID: "sm_1"}},
	}
	facts := FactsFor(cart, false)
	if !facts.HasShippingAddress || !facts.HasShippingMethod || facts.PaymentReady {
		t.Fatalf("unexpected facts %+v", facts)
	}
	if FirstIncomplete(facts) != enums.StepPayment {
		t.Fatalf("expected payment as first incomplete step")
	}
}
