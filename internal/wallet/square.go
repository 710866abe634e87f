package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/square"
)

type squarePayments interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// SquareCharger charges the wallet token as a Square card source. Square has no
// installment plans, so the transaction amount is charged in full.
type SquareCharger struct {
	payments squarePayments
}

func NewSquareCharger(payments squarePayments) *SquareCharger {
	return &SquareCharger{payments: payments}
}

var hundred = decimal.NewFromInt(100)

func (c *SquareCharger) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	cents := req.TransactionAmount.Mul(hundred).Round(0).IntPart()
	if cents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}

	note := ""
	if req.Installments > 1 {
		note = fmt.Sprintf("%d installments", req.Installments)
	}
	payment, err := c.payments.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    cents,
		SourceID:       req.Token,
		BuyerEmail:     req.Payer.Email,
		IdempotencyKey: req.IdempotencyKey,
		Note:           note,
		ReferenceID:    req.CartID,
	})
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.GetID() == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square payment response missing id")
	}
	status := ""
	if payment.GetStatus() != nil {
		status = strings.ToUpper(*payment.GetStatus())
	}
	switch status {
	case "FAILED", "CANCELED":
		return nil, pkgerrors.New(pkgerrors.CodePayment, "payment was not approved").
			WithDetails(map[string]any{"status": status})
	}
	return &ChargeResult{PaymentID: *payment.GetID()}, nil
}
