package checkout

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/steps"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// ShippingView lists delivery and pickup options for the cart. While a selection is
// in flight the optimistic option is shown instead of the cart's confirmed one.
func ShippingView(carts CartReader, svc ShippingOptions, sel ShippingSelector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		cart, err := loadCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		options, err := svc.Resolve(r.Context(), cart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if sel != nil {
			if current, inFlight := sel.Current(cart.ID); inFlight && current != "" {
				options.ShowSelected(current)
				options.SelectionPending = true
			}
		}
		responses.WriteSuccess(w, options)
	}
}

// ShippingSelect sets the cart's shipping method. On failure the error carries the
// option the cart reverted to.
func ShippingSelect(carts CartReader, svc ShippingSelector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		var payload selectShippingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := loadCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		confirmed := ""
		if current := cart.CurrentShippingMethod(); current != nil {
			confirmed = current.ShippingOptionID
		}

		selection, err := svc.Select(r.Context(), cart.ID, confirmed, payload.ShippingOptionID)
		if err != nil {
			if selection != nil {
				err = withCurrentOption(err, selection.CurrentOptionID)
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, shippingSelectionResponse{
			CurrentOptionID: selection.CurrentOptionID,
			Cart:            selection.Cart,
		})
	}
}

// ShippingSubmit advances to payment once the cart carries a shipping method.
func ShippingSubmit(carts CartReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cart, err := loadCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !cart.HasShippingMethod() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "select a shipping method to continue"))
			return
		}

		next := steps.Next(enums.StepDelivery, steps.ShippingSubmitted)
		responses.WriteSuccess(w, advanceResponse{
			Next: next,
			Link: steps.LinkToStep(checkoutPath(r), r.URL.Query(), next),
		})
	}
}

// withCurrentOption attaches the reverted option to err without touching shared errors.
func withCurrentOption(err error, optionID string) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	return pkgerrors.Wrap(typed.Code(), err, typed.Message()).WithDetails(map[string]any{
		"current_option_id": optionID,
	})
}
