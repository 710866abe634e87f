// Package wallet submits wallet-collected card data for charging.
package wallet

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/financing"
)

// ChargeRequest is the body sent to the charge backend. FinancingData carries the full
// breakdown for audit and order metadata.
type ChargeRequest struct {
	CartID            string               `json:"cart_id"`
	Token             string               `json:"token"`
	PaymentMethodID   string               `json:"payment_method_id"`
	Installments      int                  `json:"installments"`
	IssuerID          string               `json:"issuer_id,omitempty"`
	Payer             financing.Payer      `json:"payer"`
	TransactionAmount decimal.Decimal      `json:"transaction_amount"`
	FinancingData     *financing.Breakdown `json:"financing_data,omitempty"`

	IdempotencyKey string `json:"-"`
}

// ChargeResult identifies a successful charge.
type ChargeResult struct {
	PaymentID string `json:"payment_id"`
}

// Charger charges wallet-collected card data. Failures carry the provider's message.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// NewChargeRequest builds the charge body from stored card data.
func NewChargeRequest(data *financing.CardPaymentData, breakdown *financing.Breakdown) ChargeRequest {
	return ChargeRequest{
		CartID:            data.CartID,
		Token:             data.Token,
		PaymentMethodID:   data.PaymentMethodID,
		Installments:      data.Installments,
		IssuerID:          data.IssuerID,
		Payer:             data.Payer,
		TransactionAmount: data.TransactionAmount,
		FinancingData:     breakdown,
	}
}
