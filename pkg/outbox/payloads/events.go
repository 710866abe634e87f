// Package payloads holds the data schemas carried inside outbox envelopes.
package payloads

import "encoding/json"

// CheckoutCompletedEvent is the data of a checkout.completed envelope.
// Financing stays raw so the relay does not depend on the checkout packages.
type CheckoutCompletedEvent struct {
	CartID          string          `json:"cartId"`
	OrderID         string          `json:"orderId,omitempty"`
	CheckoutSession string          `json:"checkoutSession"`
	ProviderID      string          `json:"providerId"`
	Path            string          `json:"path"`
	PaymentID       string          `json:"paymentId,omitempty"`
	RedirectURL     string          `json:"redirectUrl"`
	Financing       json.RawMessage `json:"financing,omitempty"`
}
