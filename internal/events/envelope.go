package events

import (
	"github.com/angelmondragon/storefront-checkout/internal/financing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
)

const (
	envelopeVersion = 1

	TypeCheckoutCompleted = string(enums.EventCheckoutCompleted)
)

// Envelope is the stable payload structure published for every event. Direct
// publishing and the outbox relay emit the same shape.
type Envelope = outbox.PayloadEnvelope

// CheckoutCompleted is emitted once the backend confirms an order.
type CheckoutCompleted struct {
	CartID          string               `json:"cartId"`
	OrderID         string               `json:"orderId,omitempty"`
	CheckoutSession string               `json:"checkoutSession"`
	ProviderID      string               `json:"providerId"`
	Path            string               `json:"path"`
	PaymentID       string               `json:"paymentId,omitempty"`
	RedirectURL     string               `json:"redirectUrl"`
	Financing       *financing.Breakdown `json:"financing,omitempty"`
}
