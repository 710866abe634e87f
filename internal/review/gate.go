package review

import (
	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
)

// GateResult explains the review prerequisite check.
type GateResult struct {
	Passed             bool `json:"passed"`
	HasShippingAddress bool `json:"has_shipping_address"`
	HasShippingMethod  bool `json:"has_shipping_method"`
	HasPendingSession  bool `json:"has_pending_session"`
	GiftCardCovered    bool `json:"gift_card_covered"`
	HasWalletCardData  bool `json:"has_wallet_card_data"`
}

// Gate checks that the cart can be completed: a shipping address, at least one shipping
// method, and a way to pay. Card data only counts while the wallet provider is selected.
func Gate(cart *commerce.Cart, selected *payments.Provider, hasCardData bool) GateResult {
	res := GateResult{
		HasShippingAddress: cart.HasShippingAddress(),
		HasShippingMethod:  cart.HasShippingMethod(),
		GiftCardCovered:    cart.GiftCardCovered(),
	}
	if selected != nil {
		res.HasPendingSession = cart.PendingSessionFor(selected.ID) != nil
		res.HasWalletCardData = selected.CollectsInstrument() && hasCardData
	}
	res.Passed = res.HasShippingAddress && res.HasShippingMethod &&
		(res.HasPendingSession || res.GiftCardCovered || res.HasWalletCardData)
	return res
}
