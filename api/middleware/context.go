package middleware

import "context"

type contextKey string

const ctxCheckoutSession contextKey = "checkout_session"

// CheckoutSessionFromContext returns the checkout session id set by CheckoutSession.
func CheckoutSessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCheckoutSession).(string); ok {
		return v
	}
	return ""
}

// WithCheckoutSession injects the checkout session id into the context.
func WithCheckoutSession(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCheckoutSession, sessionID)
}
