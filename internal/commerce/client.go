package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

const publishableKeyHeader = "x-publishable-api-key"

// ErrMissingCartID is returned when an operation is called without a cart id.
var ErrMissingCartID = pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")

// Client issues cart, shipping, payment-session and order-completion calls against
// the commerce backend. Requests carry no client-side timeout; cancellation comes
// from the caller's context.
type Client struct {
	baseURL        string
	publishableKey string
	completePath   string
	http           *http.Client
}

// NewClient constructs a backend client from configuration.
func NewClient(cfg config.CommerceConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	completePath := strings.TrimSpace(cfg.CompletePath)
	if completePath == "" {
		completePath = "/store/checkout/complete"
	}
	return &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		publishableKey: strings.TrimSpace(cfg.PublishableKey),
		completePath:   completePath,
		http:           httpClient,
	}
}

// GetCart fetches the current cart snapshot.
func (c *Client) GetCart(ctx context.Context, cartID string) (*Cart, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, ErrMissingCartID
	}
	var resp cartEnvelope
	if err := c.do(ctx, http.MethodGet, []string{"store", "carts", cartID}, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return resp.Cart, nil
}

// ListShippingOptions returns the fulfillment options available for the cart, in backend order.
func (c *Client) ListShippingOptions(ctx context.Context, cartID string) ([]ShippingOption, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, ErrMissingCartID
	}
	query := url.Values{"cart_id": []string{cartID}}
	var resp shippingOptionsEnvelope
	if err := c.do(ctx, http.MethodGet, []string{"store", "shipping-options"}, query, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]ShippingOption, 0, len(resp.ShippingOptions))
	for _, p := range resp.ShippingOptions {
		out = append(out, p.toShippingOption())
	}
	return out, nil
}

// CalculateShippingPrice prices a calculated option for the cart.
func (c *Client) CalculateShippingPrice(ctx context.Context, optionID, cartID string) (CalculatedPrice, error) {
	if strings.TrimSpace(cartID) == "" {
		return CalculatedPrice{}, ErrMissingCartID
	}
	body := map[string]any{"cart_id": cartID, "data": map[string]any{}}
	var resp calculatedEnvelope
	if err := c.do(ctx, http.MethodPost, []string{"store", "shipping-options", optionID, "calculate"}, nil, body, &resp); err != nil {
		return CalculatedPrice{}, err
	}
	if resp.ShippingOption.Amount == nil {
		return CalculatedPrice{}, pkgerrors.New(pkgerrors.CodeDependency, "calculated price missing amount")
	}
	return CalculatedPrice{ID: defaultString(resp.ShippingOption.ID, optionID), Amount: *resp.ShippingOption.Amount}, nil
}

// SetShippingMethod attaches the shipping option to the cart and returns the updated cart.
func (c *Client) SetShippingMethod(ctx context.Context, cartID, optionID string) (*Cart, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, ErrMissingCartID
	}
	body := map[string]any{"option_id": optionID}
	var resp cartEnvelope
	if err := c.do(ctx, http.MethodPost, []string{"store", "carts", cartID, "shipping-methods"}, nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipping method response missing cart")
	}
	return resp.Cart, nil
}

// ListPaymentProviders returns the providers enabled for the region, in backend order.
func (c *Client) ListPaymentProviders(ctx context.Context, regionID string) ([]ProviderDescriptor, error) {
	if strings.TrimSpace(regionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "region id is required")
	}
	query := url.Values{"region_id": []string{regionID}}
	var resp providersEnvelope
	if err := c.do(ctx, http.MethodGet, []string{"store", "payment-providers"}, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.PaymentProviders, nil
}

// InitiatePaymentSession creates (or replaces) the pending payment session for providerID
// and returns the refreshed cart. A payment collection is created first when the cart has none.
func (c *Client) InitiatePaymentSession(ctx context.Context, cart *Cart, providerID string) (*Cart, error) {
	if cart == nil || strings.TrimSpace(cart.ID) == "" {
		return nil, ErrMissingCartID
	}
	collectionID := ""
	if cart.PaymentCollection != nil {
		collectionID = cart.PaymentCollection.ID
	}
	if collectionID == "" {
		var created collectionEnvelope
		body := map[string]any{"cart_id": cart.ID}
		if err := c.do(ctx, http.MethodPost, []string{"store", "payment-collections"}, nil, body, &created); err != nil {
			return nil, err
		}
		if created.PaymentCollection == nil || created.PaymentCollection.ID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment collection response missing id")
		}
		collectionID = created.PaymentCollection.ID
	}

	body := map[string]any{"provider_id": providerID}
	if err := c.do(ctx, http.MethodPost, []string{"store", "payment-collections", collectionID, "payment-sessions"}, nil, body, nil); err != nil {
		return nil, err
	}
	return c.GetCart(ctx, cart.ID)
}

// CompleteOrder finalizes the cart. A response without a success flag is treated as a failure.
func (c *Client) CompleteOrder(ctx context.Context, req CompleteOrderRequest) (*CompletionResult, error) {
	if strings.TrimSpace(req.CartID) == "" {
		return nil, ErrMissingCartID
	}
	var resp completionPayload
	if err := c.do(ctx, http.MethodPost, splitPath(c.completePath), nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Success == nil || !*resp.Success {
		msg := defaultString(resp.Error, defaultString(resp.Message, "order completion failed"))
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, msg)
	}
	redirect := defaultString(resp.RedirectURL, resp.RedirectURLSnake)
	if redirect == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order completion response missing redirect")
	}
	return &CompletionResult{OrderID: strings.TrimSpace(resp.OrderID), RedirectURL: redirect}, nil
}

func (c *Client) do(ctx context.Context, method string, segments []string, query url.Values, body any, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, segments...)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build commerce url")
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode commerce request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build commerce request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.publishableKey != "" {
		httpReq.Header.Set(publishableKeyHeader, c.publishableKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unable to reach commerce backend")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, resp.Body)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode commerce response")
	}
	return nil
}

// statusError maps a backend failure onto a typed error carrying the backend's message verbatim.
func statusError(status int, body io.Reader) error {
	raw := drainError(body)
	msg := raw
	var payload errorPayload
	if err := json.Unmarshal([]byte(raw), &payload); err == nil {
		msg = defaultString(payload.Message, defaultString(payload.Error, raw))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	cause := fmt.Errorf("commerce status %d", status)

	var code pkgerrors.Code
	switch {
	case status == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case status == http.StatusBadRequest:
		code = pkgerrors.CodeValidation
	case status == http.StatusConflict:
		code = pkgerrors.CodeConflict
	case status == http.StatusPaymentRequired:
		code = pkgerrors.CodePayment
	case status < http.StatusInternalServerError:
		code = pkgerrors.CodeStateConflict
	default:
		code = pkgerrors.CodeDependency
	}
	return pkgerrors.Wrap(code, cause, msg).WithDetails(map[string]any{"backend_status": status})
}

func drainError(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return strings.TrimSpace(string(b))
}

func defaultString(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return strings.TrimSpace(fallback)
	}
	return strings.TrimSpace(val)
}

func splitPath(path string) []string {
	parts := []string{}
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

type cartEnvelope struct {
	Cart *Cart `json:"cart"`
}

type collectionEnvelope struct {
	PaymentCollection *PaymentCollection `json:"payment_collection"`
}

type providersEnvelope struct {
	PaymentProviders []ProviderDescriptor `json:"payment_providers"`
}

type calculatedEnvelope struct {
	ShippingOption struct {
		ID     string           `json:"id"`
		Amount *decimal.Decimal `json:"amount"`
	} `json:"shipping_option"`
}

type shippingOptionsEnvelope struct {
	ShippingOptions []shippingOptionPayload `json:"shipping_options"`
}

type shippingOptionPayload struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	PriceType             string           `json:"price_type"`
	Amount                *decimal.Decimal `json:"amount"`
	InsufficientInventory bool             `json:"insufficient_inventory"`
	ServiceZone           struct {
		FulfillmentSet struct {
			Type     string    `json:"type"`
			Location *Location `json:"location"`
		} `json:"fulfillment_set"`
	} `json:"service_zone"`
}

func (p shippingOptionPayload) toShippingOption() ShippingOption {
	opt := ShippingOption{
		ID:                    p.ID,
		Name:                  p.Name,
		PriceType:             enums.PriceTypeFlat,
		Amount:                p.Amount,
		Fulfillment:           enums.FulfillmentShipping,
		InsufficientInventory: p.InsufficientInventory,
	}
	if pt, err := enums.ParsePriceType(strings.ToLower(strings.TrimSpace(p.PriceType))); err == nil {
		opt.PriceType = pt
	}
	if ft, err := enums.ParseFulfillmentType(strings.ToLower(strings.TrimSpace(p.ServiceZone.FulfillmentSet.Type))); err == nil {
		opt.Fulfillment = ft
	}
	if opt.IsPickup() {
		opt.Location = p.ServiceZone.FulfillmentSet.Location
	} else {
		opt.InsufficientInventory = false
	}
	if opt.IsCalculated() {
		opt.Amount = nil
	}
	return opt
}

type completionPayload struct {
	Success          *bool  `json:"success"`
	OrderID          string `json:"order_id"`
	RedirectURL      string `json:"redirectUrl"`
	RedirectURLSnake string `json:"redirect_url"`
	Error            string `json:"error"`
	Message          string `json:"message"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
