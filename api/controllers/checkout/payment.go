package checkout

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/financing"
	"github.com/angelmondragon/storefront-checkout/internal/steps"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

func paymentUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable")
}

// PaymentView renders the payment step.
func PaymentView(carts CartReader, svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, paymentUnavailable())
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
		responses.WriteSuccess(w, view)
	}
}

// PaymentSelectProvider selects a provider and, for session providers, initiates its
// payment session.
func PaymentSelectProvider(carts CartReader, svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, paymentUnavailable())
			return
		}
		var payload selectProviderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, cart, err := sessionAndCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, state, err := svc.Select(r.Context(), sessionID, cart, payload.ProviderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, providerResponse{Cart: updated, State: state})
	}
}

// PaymentCard records the card element's completeness.
func PaymentCard(carts CartReader, svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, paymentUnavailable())
			return
		}
		var payload cardStateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, cart, err := sessionAndCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state, err := svc.UpdateCard(r.Context(), sessionID, cart, payload.Complete, payload.Brand)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// WalletInstrument stores the card payment data emitted by the wallet widget and moves
// the flow to review.
func WalletInstrument(carts CartReader, svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, paymentUnavailable())
			return
		}
		var payload financing.CardPaymentData
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, cart, err := sessionAndCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		breakdown, next, err := svc.CollectWalletInstrument(r.Context(), sessionID, cart, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, walletInstrumentResponse{
			Financing: breakdown,
			Next:      next,
			Link:      steps.LinkToStep(checkoutPath(r), r.URL.Query(), next),
		})
	}
}

// WalletError surfaces an error reported by the wallet widget.
func WalletError(carts CartReader, svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, paymentUnavailable())
			return
		}
		var payload walletErrorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, cart, err := sessionAndCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state, err := svc.ReportWalletError(r.Context(), sessionID, cart, payload.Message)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// PaymentSubmit advances the payment step. Wallet providers answer deferred.
func PaymentSubmit(carts CartReader, svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, paymentUnavailable())
			return
		}
		sessionID, cart, err := sessionAndCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), sessionID, cart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, advanceResponse{
			Next:     result.Next,
			Deferred: result.Deferred,
			Cart:     result.Cart,
			Link:     steps.LinkToStep(checkoutPath(r), r.URL.Query(), result.Next),
		})
	}
}
