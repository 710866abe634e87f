package middleware

import (
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const checkoutPathPrefix = "/api/v1/checkout/"

// Logging writes one line per request. Checkout routes are tagged with the
// cart id so every log line of a checkout can be joined on it.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			if cartID := cartIDFromPath(r.URL.Path); cartID != "" {
				ctx = logg.WithCartID(ctx, cartID)
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ctx = logg.WithFields(ctx, map[string]any{
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			logg.Info(ctx, "request.complete")
		})
	}
}

func cartIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, checkoutPathPrefix)
	if !ok {
		return ""
	}
	cartID, _, _ := strings.Cut(rest, "/")
	return cartID
}
