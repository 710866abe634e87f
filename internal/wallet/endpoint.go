package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

// EndpointCharger posts charges to a dedicated backend charge endpoint.
type EndpointCharger struct {
	url  string
	http *http.Client
	logg *logger.Logger
}

type chargeResponse struct {
	Success   *bool  `json:"success"`
	PaymentID string `json:"payment_id"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

func NewEndpointCharger(url string, httpClient *http.Client, logg *logger.Logger) (*EndpointCharger, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("wallet charge url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &EndpointCharger{url: strings.TrimSpace(url), http: httpClient, logg: logg}, nil
}

// Charge submits the request. A response without a success flag, or with success=false,
// is a failure carrying the endpoint's error text.
func (c *EndpointCharger) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode charge request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build charge request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(idempotencyHeader, req.IdempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unable to reach charge endpoint")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed chargeResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode >= http.StatusInternalServerError {
		msg := firstNonEmpty(parsed.Error, parsed.Message, http.StatusText(resp.StatusCode))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("charge status %d", resp.StatusCode), msg)
	}
	if decodeErr != nil && resp.StatusCode < 400 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode charge response")
	}
	if resp.StatusCode >= 400 || parsed.Success == nil || !*parsed.Success {
		msg := firstNonEmpty(parsed.Error, parsed.Message, "payment was not approved")
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{"cart_id": req.CartID, "status": resp.StatusCode})
			c.logg.Warn(logCtx, "wallet.charge_rejected")
		}
		return nil, pkgerrors.New(pkgerrors.CodePayment, msg)
	}
	if strings.TrimSpace(parsed.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "charge response missing payment id")
	}
	return &ChargeResult{PaymentID: strings.TrimSpace(parsed.PaymentID)}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
