package checkout

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/review"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

func reviewUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable")
}

// ReviewView renders the review gate and the wallet financing breakdown.
func ReviewView(carts CartReader, svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, reviewUnavailable())
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
		responses.WriteSuccess(w, reviewResponse{View: view, Cart: cart})
	}
}

// ReviewComplete places the order. The response carries the backend redirect target
// untouched.
func ReviewComplete(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, reviewUnavailable())
			return
		}
		sessionID, err := sessionIDFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cartID, err := cartIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		completion, err := svc.Complete(r.Context(), review.CompleteInput{
			SessionID:      sessionID,
			CartID:         cartID,
			IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, completion)
	}
}

// ConfirmationFinancing returns the financing snapshot kept for the confirmation page.
func ConfirmationFinancing(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, reviewUnavailable())
			return
		}
		sessionID, err := sessionIDFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cartID, err := cartIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.FinancingSnapshot(r.Context(), sessionID, cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if snapshot == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no financing snapshot for cart"))
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// Completions lists the completion attempts recorded for the cart, newest first.
func Completions(svc ReviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, reviewUnavailable())
			return
		}
		cartID, err := cartIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseLimit(r, defaultAttemptLimit, maxAttemptLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempts, err := svc.Attempts(r.Context(), cartID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attempts)
	}
}
