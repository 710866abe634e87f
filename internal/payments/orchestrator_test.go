package payments

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/internal/financing"
	"github.com/angelmondragon/storefront-checkout/internal/sessionstore"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const (
	stripeID = "pp_stripe_stripe"
	walletID = "pp_mercadopago"
	manualID = "pp_system_default"
	session  = "sess_1"
)

type stubBackend struct {
	providers []commerce.ProviderDescriptor
	initErr   error
	initiated []string
}

func (s *stubBackend) ListPaymentProviders(context.Context, string) ([]commerce.ProviderDescriptor, error) {
	return s.providers, nil
}

func (s *stubBackend) InitiatePaymentSession(_ context.Context, cart *commerce.Cart, providerID string) (*commerce.Cart, error) {
	if s.initErr != nil {
		return nil, s.initErr
	}
	s.initiated = append(s.initiated, providerID)
	updated := *cart
	updated.PaymentCollection = &commerce.PaymentCollection{
		ID: "paycol_1",
		PaymentSessions: []commerce.PaymentSession{
			{ID: "payses_" + providerID, ProviderID: providerID, Status: enums.PaymentSessionPending},
		},
	}
	return &updated, nil
}

type fixture struct {
	orch    *Orchestrator
	backend *stubBackend
	cards   *financing.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	store := sessionstore.New(pkgredis.NewFromRaw(raw), 0)
	logg := logger.New(logger.Options{ServiceName: "test"})
	cards := financing.NewStore(store, logg)
	backend := &stubBackend{providers: []commerce.ProviderDescriptor{{ID: stripeID}, {ID: walletID}, {ID: manualID}}}
	return fixture{
		orch:    NewOrchestrator(backend, testCatalog(), store, cards, logg),
		backend: backend,
		cards:   cards,
	}
}

func testCart() *commerce.Cart {
	return &commerce.Cart{ID: "cart_1", RegionID: "reg_mx", Total: decimal.NewFromInt(1000)}
}

func cardData() financing.CardPaymentData {
	cost := decimal.NewFromInt(90)
	return financing.CardPaymentData{
		Token:             "tok_1",
		PaymentMethodID:   "visa",
		TransactionAmount: decimal.NewFromInt(1000),
		Installments:      3,
		FinancingCost:     &cost,
	}
}

func TestSelectSessionProviderCreatesPendingSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, state, err := f.orch.Select(ctx, session, testCart(), stripeID)
	require.NoError(t, err)
	assert.Equal(t, []string{stripeID}, f.backend.initiated)
	assert.Equal(t, stripeID, state.SelectedProviderID)
	require.NotNil(t, ActiveSession(updated, &Provider{ID: stripeID, Kind: enums.ProviderSessionBased}))
}

func TestSwitchingToWalletLeavesNoActiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, _, err := f.orch.Select(ctx, session, testCart(), stripeID)
	require.NoError(t, err)

	cart, state, err := f.orch.Select(ctx, session, cart, walletID)
	require.NoError(t, err)
	assert.Equal(t, []string{stripeID}, f.backend.initiated, "wallet selection must not create a generic session")

	selected := f.orch.catalog.Classify(state.SelectedProviderID)
	assert.Nil(t, ActiveSession(cart, &selected))

	view, err := f.orch.View(ctx, session, cart)
	require.NoError(t, err)
	assert.Nil(t, view.ActiveSession)
	require.NotNil(t, view.Selected)
	assert.Equal(t, enums.ProviderWalletHosted, view.Selected.Kind)
}

func TestSelectUnknownProvider(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.orch.Select(context.Background(), session, testCart(), "pp_unknown")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSelectFailureSurfacesInlineError(t *testing.T) {
	f := newFixture(t)
	f.backend.initErr = pkgerrors.New(pkgerrors.CodeStateConflict, "Region does not support provider")

	_, state, err := f.orch.Select(context.Background(), session, testCart(), stripeID)
	require.Error(t, err)
	assert.Equal(t, "Region does not support provider", state.Error)

	reloaded, err := f.orch.State(context.Background(), session, testCart())
	require.NoError(t, err)
	assert.Equal(t, "Region does not support provider", reloaded.Error)
}

func TestSwitchingProvidersKeepsCardDataButReselectingWalletClearsIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cart := testCart()

	_, _, err := f.orch.Select(ctx, session, cart, walletID)
	require.NoError(t, err)
	_, next, err := f.orch.CollectWalletInstrument(ctx, session, cart, cardData())
	require.NoError(t, err)
	assert.Equal(t, enums.StepReview, next)

	_, _, err = f.orch.Select(ctx, session, cart, manualID)
	require.NoError(t, err)
	data, _, err := f.cards.Get(ctx, session, cart.ID)
	require.NoError(t, err)
	assert.NotNil(t, data, "switching providers must not clear card data")

	_, _, err = f.orch.Select(ctx, session, cart, walletID)
	require.NoError(t, err)
	data, _, err = f.cards.Get(ctx, session, cart.ID)
	require.NoError(t, err)
	assert.NotNil(t, data, "selecting the wallet after another provider keeps card data")

	_, _, err = f.orch.Select(ctx, session, cart, walletID)
	require.NoError(t, err)
	data, _, err = f.cards.Get(ctx, session, cart.ID)
	require.NoError(t, err)
	assert.Nil(t, data, "re-selecting the wallet restarts collection")
}

func TestCollectWalletInstrumentRequiresWalletSelection(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.orch.CollectWalletInstrument(context.Background(), session, testCart(), cardData())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestCollectWalletInstrumentRejectsForeignCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.orch.Select(ctx, session, testCart(), walletID)
	require.NoError(t, err)

	data := cardData()
	data.CartID = "cart_other"
	_, _, err = f.orch.CollectWalletInstrument(ctx, session, testCart(), data)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestReportWalletErrorIsSurfaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.orch.Select(ctx, session, testCart(), walletID)
	require.NoError(t, err)

	state, err := f.orch.ReportWalletError(ctx, session, testCart(), "cc_rejected_insufficient_amount")
	require.NoError(t, err)
	assert.Equal(t, "cc_rejected_insufficient_amount", state.Error)

	view, err := f.orch.View(ctx, session, testCart())
	require.NoError(t, err)
	assert.Equal(t, "cc_rejected_insufficient_amount", view.State.Error)

	_, _, err = f.orch.Select(ctx, session, testCart(), manualID)
	require.NoError(t, err)
	view, err = f.orch.View(ctx, session, testCart())
	require.NoError(t, err)
	assert.Empty(t, view.State.Error, "switching providers clears the inline error")
}

func TestSubmitRules(t *testing.T) {
	ctx := context.Background()

	t.Run("session provider without pending session creates one", func(t *testing.T) {
		f := newFixture(t)
		cart := testCart()
		_, _, err := f.orch.Select(ctx, session, cart, stripeID)
		require.NoError(t, err)
		_, err = f.orch.UpdateCard(ctx, session, cart, true, "visa")
		require.NoError(t, err)

		res, err := f.orch.Submit(ctx, session, cart)
		require.NoError(t, err)
		assert.Equal(t, enums.StepReview, res.Next)
		assert.Len(t, f.backend.initiated, 2)
		assert.NotNil(t, res.Cart.PendingSessionFor(stripeID))
	})

	t.Run("incomplete card is rejected", func(t *testing.T) {
		f := newFixture(t)
		cart, _, err := f.orch.Select(ctx, session, testCart(), stripeID)
		require.NoError(t, err)
		_, err = f.orch.Submit(ctx, session, cart)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	})

	t.Run("wallet defers", func(t *testing.T) {
		f := newFixture(t)
		cart := testCart()
		_, _, err := f.orch.Select(ctx, session, cart, walletID)
		require.NoError(t, err)
		res, err := f.orch.Submit(ctx, session, cart)
		require.NoError(t, err)
		assert.True(t, res.Deferred)
		assert.Equal(t, enums.StepPayment, res.Next)
	})

	t.Run("generic advances directly", func(t *testing.T) {
		f := newFixture(t)
		cart := testCart()
		_, _, err := f.orch.Select(ctx, session, cart, manualID)
		require.NoError(t, err)
		res, err := f.orch.Submit(ctx, session, cart)
		require.NoError(t, err)
		assert.Equal(t, enums.StepReview, res.Next)
		assert.Empty(t, f.backend.initiated)
	})

	t.Run("gift card covered without provider", func(t *testing.T) {
		f := newFixture(t)
		cart := testCart()
		cart.Total = decimal.Zero
		cart.GiftCardTotal = decimal.NewFromInt(1000)
		res, err := f.orch.Submit(ctx, session, cart)
		require.NoError(t, err)
		assert.Equal(t, enums.StepReview, res.Next)
	})

	t.Run("no provider and not covered", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.Submit(ctx, session, testCart())
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	})
}

func TestStateDefaultsToPendingSessionProvider(t *testing.T) {
	f := newFixture(t)
	cart := testCart()
	cart.PaymentCollection = &commerce.PaymentCollection{PaymentSessions: []commerce.PaymentSession{
		{ID: "ps_1", ProviderID: stripeID, Status: enums.PaymentSessionPending},
	}}
	state, err := f.orch.State(context.Background(), session, cart)
	require.NoError(t, err)
	assert.Equal(t, stripeID, state.SelectedProviderID)
}

func TestStateFromAnotherCartIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.orch.Select(ctx, session, testCart(), manualID)
	require.NoError(t, err)

	other := testCart()
	other.ID = "cart_2"
	state, err := f.orch.State(ctx, session, other)
	require.NoError(t, err)
	assert.Empty(t, state.SelectedProviderID)
}

func TestViewShowsFinancingOnlyForWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cart := testCart()

	_, _, err := f.orch.Select(ctx, session, cart, walletID)
	require.NoError(t, err)
	_, _, err = f.orch.CollectWalletInstrument(ctx, session, cart, cardData())
	require.NoError(t, err)

	view, err := f.orch.View(ctx, session, cart)
	require.NoError(t, err)
	require.NotNil(t, view.Financing)
	assert.Equal(t, "1090", view.Financing.TotalFinancedAmount.String())
	assert.True(t, view.HasCardData)
	assert.True(t, view.CanSubmit)

	_, _, err = f.orch.Select(ctx, session, cart, manualID)
	require.NoError(t, err)
	view, err = f.orch.View(ctx, session, cart)
	require.NoError(t, err)
	assert.Nil(t, view.Financing)
}
