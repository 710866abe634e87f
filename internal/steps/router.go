// Package steps sequences the checkout panels. The active step is an explicit enum with a
// pure transition function; the query string is only a view of it.
package steps

import (
	"net/url"

	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// QueryParam is the query key carrying the active step.
const QueryParam = "step"

type eventKind int

const (
	eventAddressesSaved eventKind = iota + 1
	eventShippingSubmitted
	eventPaymentSubmitted
	eventWalletCollected
	eventEdit
)

// Event is something that happened in the flow that may move the active step.
type Event struct {
	kind   eventKind
	target enums.Step
}

var (
	AddressesSaved    = Event{kind: eventAddressesSaved}
	ShippingSubmitted = Event{kind: eventShippingSubmitted}
	PaymentSubmitted  = Event{kind: eventPaymentSubmitted}
	// WalletCollected is raised by the wallet widget once it has produced card data.
	WalletCollected = Event{kind: eventWalletCollected}
)

// Edit asks to reopen target.
func Edit(target enums.Step) Event {
	return Event{kind: eventEdit, target: target}
}

// Next returns the step that follows current after ev. Edits only move backwards (or stay).
func Next(current enums.Step, ev Event) enums.Step {
	if !current.IsValid() {
		return current
	}
	switch ev.kind {
	case eventAddressesSaved:
		return enums.StepDelivery
	case eventShippingSubmitted:
		return enums.StepPayment
	case eventPaymentSubmitted, eventWalletCollected:
		return enums.StepReview
	case eventEdit:
		if ev.target.IsValid() && ev.target.Index() <= current.Index() {
			return ev.target
		}
	}
	return current
}

// Facts is the prerequisite data present on the cart, used as the display guard for
// completed-step summaries.
type Facts struct {
	HasShippingAddress bool `json:"has_shipping_address"`
	HasShippingMethod  bool `json:"has_shipping_method"`
	PaymentReady       bool `json:"payment_ready"`
}

// FactsFor reads the display facts from a cart snapshot. paymentReady is supplied by the
// payment orchestrator since it depends on session-local state.
func FactsFor(cart *commerce.Cart, paymentReady bool) Facts {
	return Facts{
		HasShippingAddress: cart.HasShippingAddress(),
		HasShippingMethod:  cart.HasShippingMethod(),
		PaymentReady:       paymentReady,
	}
}

func (f Facts) done(step enums.Step) bool {
	switch step {
	case enums.StepAddresses:
		return f.HasShippingAddress
	case enums.StepDelivery:
		return f.HasShippingMethod
	case enums.StepPayment:
		return f.PaymentReady
	}
	return false
}

// FirstIncomplete is the default step when none is requested.
func FirstIncomplete(f Facts) enums.Step {
	for _, step := range enums.Steps() {
		if !f.done(step) {
			return step
		}
	}
	return enums.StepReview
}

// Reachable reports whether every step before step has its prerequisite data. It is a
// display aid; navigation is never blocked on it.
func Reachable(step enums.Step, f Facts) bool {
	if !step.IsValid() {
		return false
	}
	for _, earlier := range enums.Steps()[:step.Index()] {
		if !f.done(earlier) {
			return false
		}
	}
	return true
}

// Link is a navigation target. Scroll is always false: moving between panels keeps the
// page position.
type Link struct {
	Href   string `json:"href"`
	Scroll bool   `json:"scroll"`
}

// LinkToStep builds a link to step on path, keeping every other query parameter.
func LinkToStep(path string, query url.Values, step enums.Step) Link {
	next := url.Values{}
	for key, values := range query {
		next[key] = append([]string(nil), values...)
	}
	next.Set(QueryParam, step.String())
	return Link{Href: path + "?" + next.Encode()}
}

// Panel is the render state of one step.
type Panel struct {
	Step      enums.Step `json:"step"`
	Open      bool       `json:"open"`
	Summary   bool       `json:"summary"`
	Reachable bool       `json:"reachable"`
	EditLink  *Link      `json:"edit_link,omitempty"`
}

// View is the resolved state of the whole flow for one request.
type View struct {
	// Current is empty when the query named an unknown step.
	Current enums.Step `json:"current"`
	Panels  []Panel    `json:"panels"`
}

// Resolve derives the view from the query string. A missing step opens the first
// incomplete one; an unrecognized step opens nothing and every panel shows its summary.
func Resolve(path string, query url.Values, f Facts) View {
	current := FirstIncomplete(f)
	known := true
	if raw, ok := query[QueryParam]; ok && len(raw) > 0 {
		parsed, err := enums.ParseStep(raw[0])
		if err != nil {
			known = false
			current = ""
		} else {
			current = parsed
		}
	}

	view := View{Current: current}
	for _, step := range enums.Steps() {
		panel := Panel{Step: step, Reachable: Reachable(step, f)}
		switch {
		case known && step == current:
			panel.Open = true
		case !known || step.Before(current):
			panel.Summary = f.done(step)
		}
		if panel.Summary {
			link := LinkToStep(path, query, step)
			panel.EditLink = &link
		}
		view.Panels = append(view.Panels, panel)
	}
	return view
}

// Panel returns the panel for step.
func (v View) Panel(step enums.Step) (Panel, bool) {
	for _, p := range v.Panels {
		if p.Step == step {
			return p, true
		}
	}
	return Panel{}, false
}
