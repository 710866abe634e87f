// Package square charges tokenized card sources through the Square Payments API.
package square

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const defaultCurrency = "USD"

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = errors.New(`square environment must be "sandbox" or "production"`)
	errLoggerRequired      = errors.New("square logger is required")
	errNotInitialized      = errors.New("square client not initialized")
)

var baseURLs = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

type paymentsAPI interface {
	Create(ctx context.Context, request *sq.CreatePaymentRequest, opts ...sqoption.RequestOption) (*sq.CreatePaymentResponse, error)
}

type Client struct {
	payments    paymentsAPI
	environment string
	locationID  string
	currency    string
	logg        *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env := cfg.Environment()
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, errInvalidSquareEnv
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	sdk := sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token))

	logg.Info(logg.WithFields(ctx, map[string]any{
		"square_env":  env,
		"location_id": locationID,
	}), "square client ready")
	return &Client{
		payments:    sdk.Payments,
		environment: env,
		locationID:  locationID,
		currency:    currency,
		logg:        logg,
	}, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreatePayment charges params.SourceID. Location and currency fall back to
// the configured values and a key is generated when none is supplied.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	if c == nil || c.payments == nil {
		return nil, errNotInitialized
	}
	if strings.TrimSpace(params.LocationID) == "" {
		params.LocationID = c.locationID
	}
	if strings.TrimSpace(params.Currency) == "" {
		params.Currency = c.currency
	}
	if strings.TrimSpace(params.IdempotencyKey) == "" {
		params.IdempotencyKey = "payment.create-" + uuid.NewString()
	}

	ctx = c.withFields(ctx, map[string]any{
		"square_op":       "create_payment",
		"location_id":     params.LocationID,
		"reference_id":    params.ReferenceID,
		"amount_cents":    params.AmountCents,
		"idempotency_key": params.IdempotencyKey,
	})
	resp, err := c.payments.Create(ctx, params.toSquareRequest())
	if err != nil {
		mapped := mapSquareError(err, "create payment")
		if c.logg != nil {
			c.logg.Error(ctx, "square.request_failed", mapped)
		}
		return nil, mapped
	}

	payment := resp.GetPayment()
	if c.logg != nil {
		c.logg.Info(c.withFields(ctx, map[string]any{
			"payment_id":     deref(payment.GetID()),
			"payment_status": deref(payment.GetStatus()),
		}), "square.payment_created")
	}
	return payment, nil
}

func (c *Client) withFields(ctx context.Context, fields map[string]any) context.Context {
	if c.logg == nil {
		return ctx
	}
	return c.logg.WithFields(ctx, fields)
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
