package checkout

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/internal/steps"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// StepView resolves which panel is open for the ?step= query and which completed steps
// show a summary.
func StepView(carts CartReader, svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		sessionID, cart, err := sessionAndCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.View(r.Context(), sessionID, cart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gate := view.Gate
		facts := steps.FactsFor(cart, gate.HasPendingSession || gate.GiftCardCovered || gate.HasWalletCardData)
		responses.WriteSuccess(w, stepResponse{
			Cart:   cart,
			Facts:  facts,
			Layout: steps.Resolve(checkoutPath(r), r.URL.Query(), facts),
		})
	}
}
