package shipping

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type stubCommerce struct {
	mu       sync.Mutex
	options  []commerce.ShippingOption
	prices   map[string]decimal.Decimal
	priceErr map[string]error
	setErr   map[string]error
	setCalls []string
	block    chan struct{}
}

func (s *stubCommerce) ListShippingOptions(context.Context, string) ([]commerce.ShippingOption, error) {
	return s.options, nil
}

func (s *stubCommerce) CalculateShippingPrice(_ context.Context, optionID, _ string) (commerce.CalculatedPrice, error) {
	if err := s.priceErr[optionID]; err != nil {
		return commerce.CalculatedPrice{}, err
	}
	return commerce.CalculatedPrice{ID: optionID, Amount: s.prices[optionID]}, nil
}

func (s *stubCommerce) SetShippingMethod(_ context.Context, cartID, optionID string) (*commerce.Cart, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.setCalls = append(s.setCalls, optionID)
	s.mu.Unlock()
	if err := s.setErr[optionID]; err != nil {
		return nil, err
	}
	return &commerce.Cart{ID: cartID, ShippingMethods: []commerce.ShippingMethod{{ID: "sm_" + optionID, ShippingOptionID: optionID}}}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestResolvePartitionsAndPricesOptions(t *testing.T) {
	api := &stubCommerce{
		options: []commerce.ShippingOption{
			{ID: "so_flat", PriceType: enums.PriceTypeFlat, Amount: amount(10), Fulfillment: enums.FulfillmentShipping},
			{ID: "so_calc_ok", PriceType: enums.PriceTypeCalculated, Fulfillment: enums.FulfillmentShipping},
			{ID: "so_calc_fail", PriceType: enums.PriceTypeCalculated, Fulfillment: enums.FulfillmentShipping},
			{ID: "so_pickup", PriceType: enums.PriceTypeFlat, Amount: amount(0), Fulfillment: enums.FulfillmentPickup},
			{ID: "so_pickup_empty", PriceType: enums.PriceTypeFlat, Amount: amount(0), Fulfillment: enums.FulfillmentPickup, InsufficientInventory: true},
		},
		prices:   map[string]decimal.Decimal{"so_calc_ok": decimal.NewFromInt(42)},
		priceErr: map[string]error{"so_calc_fail": errors.New("carrier timeout")},
	}
	cart := &commerce.Cart{ID: "cart_1", ShippingMethods: []commerce.ShippingMethod{{ShippingOptionID: "so_pickup"}}}

	out, err := NewResolver(api, nil, testLogger()).Resolve(context.Background(), cart)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Delivery) != 3 || len(out.Pickup) != 2 {
		t.Fatalf("unexpected partition delivery=%d pickup=%d", len(out.Delivery), len(out.Pickup))
	}
	byID := map[string]Option{}
	for _, opt := range append(out.Delivery, out.Pickup...) {
		byID[opt.ID] = opt
	}
	if ok := byID["so_calc_ok"]; ok.Price == nil || !ok.Price.Equal(decimal.NewFromInt(42)) || ok.Disabled {
		t.Fatalf("expected resolved calculated price, got %+v", ok)
	}
	if failed := byID["so_calc_fail"]; failed.Price != nil || !failed.Disabled {
		t.Fatalf("failed calculation must leave price absent and disable the option, got %+v", failed)
	}
	if flat := byID["so_flat"]; flat.Price == nil || flat.Disabled {
		t.Fatalf("flat option should keep its price, got %+v", flat)
	}
	if !byID["so_pickup_empty"].Disabled || byID["so_pickup"].Disabled {
		t.Fatalf("only the pickup option without inventory should be disabled")
	}
	if !out.PickupSelected || out.SelectedOptionID != "so_pickup" || !out.CanContinue {
		t.Fatalf("unexpected selection state %+v", out)
	}
}

func TestResolveCannotContinueWithoutMethod(t *testing.T) {
	api := &stubCommerce{}
	out, err := NewResolver(api, nil, nil).Resolve(context.Background(), &commerce.Cart{ID: "cart_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.CanContinue || out.PickupSelected {
		t.Fatalf("unexpected state %+v", out)
	}
}

func TestSelectFailureRevertsAndKeepsMessage(t *testing.T) {
	backendErr := pkgerrors.New(pkgerrors.CodeStateConflict, "The shipping option is not available for this cart")
	api := &stubCommerce{setErr: map[string]error{"so_b": backendErr}}
	sel := NewSelector(api, nil, testLogger())

	res, err := sel.Select(context.Background(), "cart_1", "so_a", "so_b")
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.MessageOf(err) != "The shipping option is not available for this cart" {
		t.Fatalf("expected backend text verbatim, got %q", pkgerrors.MessageOf(err))
	}
	if res == nil || res.CurrentOptionID != "so_a" {
		t.Fatalf("expected rollback to so_a, got %+v", res)
	}
	if _, inFlight := sel.Current("cart_1"); inFlight {
		t.Fatalf("entry should be released after the attempt")
	}
}

func TestSelectSuccessReturnsConfirmedCart(t *testing.T) {
	api := &stubCommerce{}
	res, err := NewSelector(api, nil, nil).Select(context.Background(), "cart_1", "", "so_a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CurrentOptionID != "so_a" || res.Cart == nil {
		t.Fatalf("unexpected selection %+v", res)
	}
}

func TestSelectSerializesPerCartAndRevertsToConfirmed(t *testing.T) {
	block := make(chan struct{})
	api := &stubCommerce{block: block, setErr: map[string]error{"so_c": errors.New("boom")}}
	sel := NewSelector(api, nil, nil)

	var wg sync.WaitGroup
	var first *Selection
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, _ = sel.Select(context.Background(), "cart_1", "so_a", "so_b")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if current, ok := sel.Current("cart_1"); ok && current == "so_b" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first selection never became current")
		}
		time.Sleep(time.Millisecond)
	}

	var second *Selection
	var secondErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		// the caller's snapshot still shows so_a; the queued attempt must not use it
		second, secondErr = sel.Select(context.Background(), "cart_1", "so_a", "so_c")
	}()

	waitForRefs(t, sel, "cart_1", 2)
	close(block)
	wg.Wait()

	if first == nil || first.CurrentOptionID != "so_b" {
		t.Fatalf("unexpected first selection %+v", first)
	}
	if secondErr == nil {
		t.Fatal("expected second selection to fail")
	}
	if second.CurrentOptionID != "so_b" {
		t.Fatalf("expected rollback to confirmed so_b, got %s", second.CurrentOptionID)
	}
	if len(api.setCalls) != 2 || api.setCalls[0] != "so_b" {
		t.Fatalf("expected serialized calls, got %v", api.setCalls)
	}
}

func TestSelectValidatesInput(t *testing.T) {
	sel := NewSelector(&stubCommerce{}, nil, nil)
	if _, err := sel.Select(context.Background(), "cart_1", "", " "); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func waitForRefs(t *testing.T, sel *Selector, cartID string, refs int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sel.mu.Lock()
		entry, ok := sel.carts[cartID]
		n := 0
		if ok {
			n = entry.refs
		}
		sel.mu.Unlock()
		if n == refs {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("cart %s never reached %d queued selections", cartID, refs)
}
