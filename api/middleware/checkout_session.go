package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const CheckoutSessionHeader = "X-Checkout-Session"

// CheckoutSession resolves the opaque checkout session id from the header or cookie and
// issues a new one when neither is present.
func CheckoutSession(cfg config.CheckoutConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	cookieName := strings.TrimSpace(cfg.SessionCookie)
	if cookieName == "" {
		cookieName = "checkout_session"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(CheckoutSessionHeader))
			if sessionID == "" {
				if c, err := r.Cookie(cookieName); err == nil {
					sessionID = strings.TrimSpace(c.Value)
				}
			}
			if _, err := uuid.Parse(sessionID); err != nil {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(cfg.SessionTTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.SecureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(CheckoutSessionHeader, sessionID)

			ctx := WithCheckoutSession(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithCheckoutSession(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
