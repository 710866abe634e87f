package checkout

import (
	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/internal/financing"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/review"
	"github.com/angelmondragon/storefront-checkout/internal/steps"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

const (
	defaultAttemptLimit = 20
	maxAttemptLimit     = 100
)

type selectShippingRequest struct {
	ShippingOptionID string `json:"shipping_option_id" validate:"required,commerce_id"`
}

type selectProviderRequest struct {
	ProviderID string `json:"provider_id" validate:"required,commerce_id"`
}

type cardStateRequest struct {
	Complete bool   `json:"complete"`
	Brand    string `json:"brand,omitempty" validate:"max=64"`
}

type walletErrorRequest struct {
	Message string `json:"message" validate:"max=500"`
}

type stepResponse struct {
	Cart   *commerce.Cart `json:"cart"`
	Facts  steps.Facts    `json:"facts"`
	Layout steps.View     `json:"layout"`
}

type shippingSelectionResponse struct {
	CurrentOptionID string         `json:"current_option_id"`
	Cart            *commerce.Cart `json:"cart"`
}

type advanceResponse struct {
	Next     enums.Step     `json:"next"`
	Deferred bool           `json:"deferred,omitempty"`
	Cart     *commerce.Cart `json:"cart,omitempty"`
	Link     steps.Link     `json:"link"`
}

type providerResponse struct {
	Cart  *commerce.Cart      `json:"cart"`
	State payments.LocalState `json:"state"`
}

type walletInstrumentResponse struct {
	Financing *financing.Breakdown `json:"financing"`
	Next      enums.Step           `json:"next"`
	Link      steps.Link           `json:"link"`
}

type reviewResponse struct {
	*review.View
	Cart *commerce.Cart `json:"cart"`
}
