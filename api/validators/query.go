package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// ParseLimit reads ?limit=. Missing means fallback; anything outside
// [1, max] is a validation error rather than being clamped.
func ParseLimit(r *http.Request, fallback, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a number between 1 and "+strconv.Itoa(max)).
			WithDetails(map[string]any{"field": "limit", "value": raw})
	}
	return limit, nil
}
