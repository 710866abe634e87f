package square

import (
	"encoding/json"
	"errors"
	"net/http"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusPaymentRequired:     pkgerrors.CodePayment,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

// mapSquareError classifies an SDK error. Payment method errors keep Square's
// detail text so the buyer sees why the card was declined.
func mapSquareError(err error, op string) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square "+op+" failed")
	}

	code := codeForStatus(apiErr.StatusCode)
	for _, e := range decodeErrors(apiErr) {
		switch {
		case e == nil:
			continue
		case e.Category == sq.ErrorCategoryPaymentMethodError:
			msg := deref(e.Detail)
			if msg == "" {
				msg = "square " + op + " declined"
			}
			return pkgerrors.Wrap(pkgerrors.CodePayment, err, msg)
		case e.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "square "+op+" failed")
		case e.Category == sq.ErrorCategoryAuthenticationError:
			code = pkgerrors.CodeUnauthorized
		}
	}
	return pkgerrors.Wrap(code, err, "square "+op+" failed")
}

// decodeErrors reads the {"errors":[...]} body the SDK keeps as the wrapped error.
func decodeErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	return body.Errors
}
