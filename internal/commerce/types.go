package commerce

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Cart is a read-only snapshot of the backend-owned cart aggregate.
type Cart struct {
	ID                string             `json:"id"`
	RegionID          string             `json:"region_id"`
	Email             string             `json:"email,omitempty"`
	CurrencyCode      string             `json:"currency_code"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	BillingAddress    *Address           `json:"billing_address,omitempty"`
	ShippingMethods   []ShippingMethod   `json:"shipping_methods"`
	PaymentCollection *PaymentCollection `json:"payment_collection,omitempty"`
	Total             decimal.Decimal    `json:"total"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	ShippingTotal     decimal.Decimal    `json:"shipping_total"`
	TaxTotal          decimal.Decimal    `json:"tax_total"`
	GiftCardTotal     decimal.Decimal    `json:"gift_card_total"`
}

type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address_1,omitempty"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// ShippingMethod is a method attached to the cart; the last entry is current.
type ShippingMethod struct {
	ID               string          `json:"id"`
	ShippingOptionID string          `json:"shipping_option_id"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
}

type PaymentCollection struct {
	ID              string           `json:"id"`
	PaymentSessions []PaymentSession `json:"payment_sessions"`
}

// PaymentSession binds the cart to one provider attempt. Data is provider specific:
// a confirmable client secret for card sessions, a preference id for wallets.
type PaymentSession struct {
	ID         string                     `json:"id"`
	ProviderID string                     `json:"provider_id"`
	Status     enums.PaymentSessionStatus `json:"status"`
	Amount     decimal.Decimal            `json:"amount"`
	Data       map[string]any             `json:"data,omitempty"`
}

// ShippingOption is a fulfillment option offered for the cart.
type ShippingOption struct {
	ID                    string                `json:"id"`
	Name                  string                `json:"name"`
	PriceType             enums.PriceType       `json:"price_type"`
	Amount                *decimal.Decimal      `json:"amount,omitempty"`
	Fulfillment           enums.FulfillmentType `json:"fulfillment_type"`
	Location              *Location             `json:"location,omitempty"`
	InsufficientInventory bool                  `json:"insufficient_inventory,omitempty"`
}

// Location is the collection point of a pickup option.
type Location struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// CalculatedPrice is the result of pricing a calculated shipping option for a cart.
type CalculatedPrice struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// ProviderDescriptor identifies a payment provider enabled in a region.
type ProviderDescriptor struct {
	ID string `json:"id"`
}

// CompleteOrderRequest finalizes the cart into an order.
type CompleteOrderRequest struct {
	CartID     string `json:"cart_id"`
	PaymentID  string `json:"payment_id,omitempty"`
	ProviderID string `json:"provider_id"`
}

// CompletionResult carries the redirect target returned by the backend.
type CompletionResult struct {
	OrderID     string `json:"order_id,omitempty"`
	RedirectURL string `json:"redirect_url"`
}

// IsPickup reports whether the option requires in-person collection.
func (o ShippingOption) IsPickup() bool {
	return o.Fulfillment == enums.FulfillmentPickup
}

// IsCalculated reports whether the option's price must be computed per cart.
func (o ShippingOption) IsCalculated() bool {
	return o.PriceType == enums.PriceTypeCalculated
}

// CurrentShippingMethod returns the last attached shipping method, or nil.
func (c *Cart) CurrentShippingMethod() *ShippingMethod {
	if c == nil || len(c.ShippingMethods) == 0 {
		return nil
	}
	return &c.ShippingMethods[len(c.ShippingMethods)-1]
}

// HasShippingMethod reports whether at least one shipping method is attached.
func (c *Cart) HasShippingMethod() bool {
	return c != nil && len(c.ShippingMethods) > 0
}

// HasShippingAddress reports whether a usable shipping address is set.
func (c *Cart) HasShippingAddress() bool {
	return c != nil && c.ShippingAddress != nil && strings.TrimSpace(c.ShippingAddress.Address1) != ""
}

// PendingSession returns the active pending payment session, or nil.
func (c *Cart) PendingSession() *PaymentSession {
	if c == nil || c.PaymentCollection == nil {
		return nil
	}
	for i := range c.PaymentCollection.PaymentSessions {
		if c.PaymentCollection.PaymentSessions[i].Status == enums.PaymentSessionPending {
			return &c.PaymentCollection.PaymentSessions[i]
		}
	}
	return nil
}

// PendingSessionFor returns the pending session only when it belongs to providerID.
func (c *Cart) PendingSessionFor(providerID string) *PaymentSession {
	session := c.PendingSession()
	if session == nil || providerID == "" || session.ProviderID != providerID {
		return nil
	}
	return session
}

// GiftCardCovered reports whether gift cards fully offset the cart total.
func (c *Cart) GiftCardCovered() bool {
	if c == nil {
		return false
	}
	return c.GiftCardTotal.IsPositive() && c.Total.IsZero()
}

// SessionString reads a string field from the session's provider data.
func (s *PaymentSession) SessionString(key string) string {
	if s == nil || s.Data == nil {
		return ""
	}
	if v, ok := s.Data[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
