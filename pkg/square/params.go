package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// PaymentCreateParams describes one card charge. ReferenceID carries the cart
// id so the charge can be matched to the order.
type PaymentCreateParams struct {
	AmountCents       int64
	Currency          string
	LocationID        string
	CustomerID        string
	SourceID          string
	VerificationToken string
	BuyerEmail        string
	IdempotencyKey    string
	Note              string
	ReferenceID       string
}

func (p PaymentCreateParams) toSquareRequest() *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey:    p.IdempotencyKey,
		SourceID:          p.SourceID,
		LocationID:        optional(p.LocationID),
		CustomerID:        optional(p.CustomerID),
		Note:              optional(p.Note),
		ReferenceID:       optional(p.ReferenceID),
		VerificationToken: optional(p.VerificationToken),
		BuyerEmailAddress: optional(p.BuyerEmail),
	}
	if p.AmountCents > 0 {
		amount := p.AmountCents
		currency := sq.Currency(strings.ToUpper(strings.TrimSpace(p.Currency)))
		if currency == "" {
			currency = defaultCurrency
		}
		req.AmountMoney = &sq.Money{Amount: &amount, Currency: &currency}
	}
	return req
}

// optional returns nil for blank values so they are omitted from the request.
func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
