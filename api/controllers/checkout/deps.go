package checkout

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/internal/financing"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/review"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// CartURLParam names the chi route parameter carrying the cart id.
const CartURLParam = "cartId"

type CartReader interface {
	GetCart(ctx context.Context, cartID string) (*commerce.Cart, error)
}

type ShippingOptions interface {
	Resolve(ctx context.Context, cart *commerce.Cart) (*shipping.Options, error)
}

type ShippingSelector interface {
	Select(ctx context.Context, cartID, confirmedOptionID, optionID string) (*shipping.Selection, error)
	Current(cartID string) (string, bool)
}

type PaymentService interface {
	View(ctx context.Context, sessionID string, cart *commerce.Cart) (*payments.View, error)
	Select(ctx context.Context, sessionID string, cart *commerce.Cart, providerID string) (*commerce.Cart, payments.LocalState, error)
	UpdateCard(ctx context.Context, sessionID string, cart *commerce.Cart, complete bool, brand string) (payments.LocalState, error)
	ReportWalletError(ctx context.Context, sessionID string, cart *commerce.Cart, message string) (payments.LocalState, error)
	CollectWalletInstrument(ctx context.Context, sessionID string, cart *commerce.Cart, data financing.CardPaymentData) (*financing.Breakdown, enums.Step, error)
	Submit(ctx context.Context, sessionID string, cart *commerce.Cart) (*payments.SubmitResult, error)
}

type ReviewService interface {
	View(ctx context.Context, sessionID string, cart *commerce.Cart) (*review.View, error)
	Complete(ctx context.Context, in review.CompleteInput) (*review.Completion, error)
	FinancingSnapshot(ctx context.Context, sessionID, cartID string) (*financing.Breakdown, error)
	Attempts(ctx context.Context, cartID string, limit int) ([]models.CheckoutCompletion, error)
}

func cartIDParam(r *http.Request) (string, error) {
	cartID := strings.TrimSpace(chi.URLParam(r, CartURLParam))
	if cartID == "" {
		return "", commerce.ErrMissingCartID
	}
	return cartID, nil
}

func sessionIDFrom(r *http.Request) (string, error) {
	sessionID := middleware.CheckoutSessionFromContext(r.Context())
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing")
	}
	return sessionID, nil
}

// loadCart reads the cart named in the route from the commerce backend.
func loadCart(r *http.Request, carts CartReader) (*commerce.Cart, error) {
	if carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commerce client unavailable")
	}
	cartID, err := cartIDParam(r)
	if err != nil {
		return nil, err
	}
	return carts.GetCart(r.Context(), cartID)
}

// sessionAndCart resolves both the checkout session and the cart.
func sessionAndCart(r *http.Request, carts CartReader) (string, *commerce.Cart, error) {
	sessionID, err := sessionIDFrom(r)
	if err != nil {
		return "", nil, err
	}
	cart, err := loadCart(r, carts)
	if err != nil {
		return "", nil, err
	}
	return sessionID, cart, nil
}

// checkoutPath is the step view path for the routed cart; step links point at it.
func checkoutPath(r *http.Request) string {
	cartID := chi.URLParam(r, CartURLParam)
	if cartID == "" {
		return r.URL.Path
	}
	if i := strings.Index(r.URL.Path, "/"+cartID); i >= 0 {
		return r.URL.Path[:i+1+len(cartID)]
	}
	return r.URL.Path
}
