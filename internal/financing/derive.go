package financing

import (
	"github.com/shopspring/decimal"
)

// CardPaymentData is the instrument data produced by the wallet widget. It never
// reaches the generic payment-session mechanism and is bound to the cart it was
// collected for.
type CardPaymentData struct {
	CartID            string          `json:"cart_id" validate:"required"`
	Token             string          `json:"token" validate:"required"`
	PaymentMethodID   string          `json:"payment_method_id" validate:"required"`
	IssuerID          string          `json:"issuer_id,omitempty"`
	Payer             Payer           `json:"payer"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	Installments      int             `json:"installments" validate:"gte=0"`

	TotalFinancedAmount *decimal.Decimal `json:"total_financed_amount,omitempty"`
	InstallmentAmount   *decimal.Decimal `json:"installment_amount,omitempty"`
	FinancingCost       *decimal.Decimal `json:"financing_cost,omitempty"`
	PaymentType         string           `json:"payment_type,omitempty"`
}

type Payer struct {
	Email          string          `json:"email,omitempty" validate:"omitempty,email"`
	Identification *Identification `json:"identification,omitempty"`
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// Breakdown is the normalized installment view of CardPaymentData.
type Breakdown struct {
	HasFinancing        bool            `json:"has_financing"`
	HasFinancingCost    bool            `json:"has_financing_cost"`
	OriginalAmount      decimal.Decimal `json:"original_amount"`
	TotalFinancedAmount decimal.Decimal `json:"total_financed_amount"`
	FinancingCost       decimal.Decimal `json:"financing_cost"`
	Installments        int             `json:"installments"`
	InstallmentAmount   decimal.Decimal `json:"installment_amount"`
	PaymentType         string          `json:"payment_type,omitempty"`
}

// Derive computes the financing breakdown. Provider-reported figures win over derived
// ones; a nil input yields a nil breakdown.
func Derive(data *CardPaymentData) *Breakdown {
	if data == nil {
		return nil
	}

	installments := data.Installments
	if installments < 1 {
		installments = 1
	}
	amount := data.TransactionAmount

	cost := decimal.Zero
	switch {
	case data.FinancingCost != nil:
		cost = *data.FinancingCost
	case data.TotalFinancedAmount != nil:
		cost = data.TotalFinancedAmount.Sub(amount)
	}

	total := amount.Add(cost)
	if data.TotalFinancedAmount != nil {
		total = *data.TotalFinancedAmount
	}

	perInstallment := total.DivRound(decimal.NewFromInt(int64(installments)), 2)
	if data.InstallmentAmount != nil {
		perInstallment = *data.InstallmentAmount
	}

	return &Breakdown{
		HasFinancing:        data.Installments > 1,
		HasFinancingCost:    cost.IsPositive(),
		OriginalAmount:      amount,
		TotalFinancedAmount: total,
		FinancingCost:       cost,
		Installments:        installments,
		InstallmentAmount:   perInstallment,
		PaymentType:         data.PaymentType,
	}
}
