package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/storefront-checkout/internal/financing"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/square"
)

func sampleRequest() ChargeRequest {
	cost := decimal.NewFromInt(90)
	data := &financing.CardPaymentData{
		CartID:            "cart_1",
		Token:             "tok_1",
		PaymentMethodID:   "visa",
		IssuerID:          "310",
		Payer:             financing.Payer{Email: "buyer@example.com"},
		TransactionAmount: decimal.NewFromInt(1000),
		Installments:      3,
		FinancingCost:     &cost,
	}
	req := NewChargeRequest(data, financing.Derive(data))
	req.IdempotencyKey = "idem-1"
	return req
}

func TestEndpointChargerSuccess(t *testing.T) {
	var got map[string]any
	var idem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idem = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":true,"payment_id":"pay_123"}`))
	}))
	defer srv.Close()

	charger, err := NewEndpointCharger(srv.URL, srv.Client(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := charger.Charge(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PaymentID != "pay_123" {
		t.Fatalf("unexpected payment id %s", res.PaymentID)
	}
	if idem != "idem-1" {
		t.Fatalf("expected idempotency header, got %q", idem)
	}
	for _, key := range []string{"cart_id", "token", "payment_method_id", "installments", "issuer_id", "payer", "transaction_amount", "financing_data"} {
		if _, ok := got[key]; !ok {
			t.Fatalf("charge body missing %s: %v", key, got)
		}
	}
	financingData, _ := got["financing_data"].(map[string]any)
	if financingData["total_financed_amount"] != "1090" {
		t.Fatalf("expected full breakdown in financing_data, got %v", financingData)
	}
}

func TestEndpointChargerFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode pkgerrors.Code
		wantMsg  string
	}{
		{"explicit failure with error", http.StatusOK, `{"success":false,"error":"cc_rejected_high_risk"}`, pkgerrors.CodePayment, "cc_rejected_high_risk"},
		{"explicit failure with message", http.StatusOK, `{"success":false,"message":"Tarjeta rechazada"}`, pkgerrors.CodePayment, "Tarjeta rechazada"},
		{"missing success flag", http.StatusOK, `{"payment_id":"pay_1"}`, pkgerrors.CodePayment, "payment was not approved"},
		{"client error", http.StatusBadRequest, `{"error":"invalid token"}`, pkgerrors.CodePayment, "invalid token"},
		{"server error", http.StatusBadGateway, `{"message":"upstream down"}`, pkgerrors.CodeDependency, "upstream down"},
		{"garbage", http.StatusOK, `not json`, pkgerrors.CodeDependency, "decode charge response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			charger, _ := NewEndpointCharger(srv.URL, srv.Client(), nil)
			_, err := charger.Charge(context.Background(), sampleRequest())
			if !pkgerrors.Is(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if msg := pkgerrors.MessageOf(err); msg != tt.wantMsg {
				t.Fatalf("expected message %q, got %q", tt.wantMsg, msg)
			}
		})
	}
}

func TestEndpointChargerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	charger, _ := NewEndpointCharger(url, nil, nil)
	if _, err := charger.Charge(context.Background(), sampleRequest()); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewEndpointChargerRequiresURL(t *testing.T) {
	if _, err := NewEndpointCharger(" ", nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

type stubSquare struct {
	got     square.PaymentCreateParams
	payment *sq.Payment
	err     error
}

func (s *stubSquare) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	s.got = params
	return s.payment, s.err
}

func TestSquareChargerChargesTransactionAmount(t *testing.T) {
	id, status := "sq_1", "COMPLETED"
	stub := &stubSquare{payment: &sq.Payment{ID: &id, Status: &status}}

	res, err := NewSquareCharger(stub).Charge(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PaymentID != "sq_1" {
		t.Fatalf("unexpected payment id %s", res.PaymentID)
	}
	if stub.got.AmountCents != 100000 || stub.got.SourceID != "tok_1" || stub.got.ReferenceID != "cart_1" {
		t.Fatalf("unexpected params %+v", stub.got)
	}
	if stub.got.IdempotencyKey != "idem-1" || stub.got.BuyerEmail != "buyer@example.com" {
		t.Fatalf("unexpected params %+v", stub.got)
	}
}

func TestSquareChargerRejectsFailedPayment(t *testing.T) {
	id, status := "sq_1", "FAILED"
	stub := &stubSquare{payment: &sq.Payment{ID: &id, Status: &status}}
	if _, err := NewSquareCharger(stub).Charge(context.Background(), sampleRequest()); !pkgerrors.Is(err, pkgerrors.CodePayment) {
		t.Fatalf("expected payment error, got %v", err)
	}
}

func TestSquareChargerRejectsZeroAmount(t *testing.T) {
	req := sampleRequest()
	req.TransactionAmount = decimal.Zero
	if _, err := NewSquareCharger(&stubSquare{}).Charge(context.Background(), req); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
