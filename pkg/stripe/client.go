// Package stripe verifies card PaymentIntents before an order is completed.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = errors.New(`stripe environment must be "test" or "live"`)
)

// keyPrefixes lists the secret and restricted key prefixes valid per environment.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// confirmed holds the intent statuses that allow the order to be completed.
var confirmed = map[stripe.PaymentIntentStatus]bool{
	stripe.PaymentIntentStatusSucceeded:       true,
	stripe.PaymentIntentStatusProcessing:      true,
	stripe.PaymentIntentStatusRequiresCapture: true,
}

type intentRetriever interface {
	Retrieve(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

type Client struct {
	intents     intentRetriever
	environment string
	logg        *logger.Logger
}

// NewClient checks that the key matches the configured environment before
// building the API client.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if !hasAnyPrefix(apiKey, prefixes) {
		return nil, fmt.Errorf("stripe %s environment requires a key starting with %s", env, strings.Join(prefixes, " or "))
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client ready")
	}
	return &Client{
		intents:     stripe.NewClient(apiKey).V1PaymentIntents,
		environment: env,
		logg:        logg,
	}, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// ConfirmIntent returns nil when the PaymentIntent has been confirmed by the
// storefront. Otherwise it returns a PAYMENT_ERROR carrying Stripe's decline
// message when there is one.
func (c *Client) ConfirmIntent(ctx context.Context, intentID string) error {
	if c == nil || c.intents == nil {
		return errors.New("stripe client not initialized")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	intent, err := c.intents.Retrieve(ctx, intentID, nil)
	if err != nil {
		return mapStripeError(err)
	}
	if confirmed[intent.Status] {
		return nil
	}

	if c.logg != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"payment_intent_id": intentID,
			"intent_status":     string(intent.Status),
		}), "stripe.intent_not_confirmed")
	}
	msg := "card payment has not been confirmed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		msg = intent.LastPaymentError.Msg
	}
	return pkgerrors.New(pkgerrors.CodePayment, msg).WithDetails(map[string]any{
		"intent_status": string(intent.Status),
	})
}

func mapStripeError(err error) error {
	var apiErr *stripe.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusNotFound:
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment intent not found")
		case apiErr.Type == stripe.ErrorTypeCard:
			return pkgerrors.Wrap(pkgerrors.CodePayment, err, apiErr.Msg)
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unable to verify card payment")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
