package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/internal/financing"
	"github.com/angelmondragon/storefront-checkout/internal/sessionstore"
	"github.com/angelmondragon/storefront-checkout/internal/steps"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type backend interface {
	ListPaymentProviders(ctx context.Context, regionID string) ([]commerce.ProviderDescriptor, error)
	InitiatePaymentSession(ctx context.Context, cart *commerce.Cart, providerID string) (*commerce.Cart, error)
}

type records interface {
	Save(ctx context.Context, sessionID string, kind sessionstore.Kind, cartID string, value any) error
	Load(ctx context.Context, sessionID string, kind sessionstore.Kind, activeCartID string, out any) (bool, error)
}

type cardStore interface {
	Set(ctx context.Context, sessionID string, data financing.CardPaymentData) (*financing.Breakdown, error)
	Get(ctx context.Context, sessionID, activeCartID string) (*financing.CardPaymentData, *financing.Breakdown, error)
	Clear(ctx context.Context, sessionID string) error
}

// LocalState is the UI-only payment state of a checkout session. It is kept apart from
// the server payment sessions and bound to the cart it was written for.
type LocalState struct {
	SelectedProviderID string `json:"selected_provider_id,omitempty"`
	CardComplete       bool   `json:"card_complete"`
	CardBrand          string `json:"card_brand,omitempty"`
	Error              string `json:"error,omitempty"`
}

// View is everything the payment step renders.
type View struct {
	Providers       []Provider               `json:"providers"`
	Selected        *Provider                `json:"selected,omitempty"`
	State           LocalState               `json:"state"`
	ActiveSession   *commerce.PaymentSession `json:"active_session,omitempty"`
	GiftCardCovered bool                     `json:"gift_card_covered"`
	CanSubmit       bool                     `json:"can_submit"`
	HasCardData     bool                     `json:"has_card_data"`
	Financing       *financing.Breakdown     `json:"financing,omitempty"`
}

// SubmitResult is the outcome of the submit action. Deferred is set for wallet
// providers, where the widget drives the move to review.
type SubmitResult struct {
	Cart     *commerce.Cart `json:"cart"`
	Next     enums.Step     `json:"next"`
	Deferred bool           `json:"deferred"`
}

// Orchestrator dispatches payment step actions on the selected provider's class.
type Orchestrator struct {
	backend backend
	catalog *Catalog
	states  records
	cards   cardStore
	logg    *logger.Logger
}

func NewOrchestrator(b backend, catalog *Catalog, states records, cards cardStore, logg *logger.Logger) *Orchestrator {
	return &Orchestrator{backend: b, catalog: catalog, states: states, cards: cards, logg: logg}
}

// Providers lists the region's providers, classified.
func (o *Orchestrator) Providers(ctx context.Context, cart *commerce.Cart) ([]Provider, error) {
	if cart == nil || strings.TrimSpace(cart.RegionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart has no region")
	}
	descriptors, err := o.backend.ListPaymentProviders(ctx, cart.RegionID)
	if err != nil {
		return nil, err
	}
	return o.catalog.Resolve(descriptors), nil
}

// State loads the local state. Without a stored selection the provider of the pending
// session, if any, is preselected.
func (o *Orchestrator) State(ctx context.Context, sessionID string, cart *commerce.Cart) (LocalState, error) {
	var state LocalState
	found, err := o.states.Load(ctx, sessionID, sessionstore.KindPaymentState, cart.ID, &state)
	if err != nil && !errors.Is(err, sessionstore.ErrCartMismatch) {
		return LocalState{}, err
	}
	if !found {
		state = LocalState{}
		if pending := cart.PendingSession(); pending != nil {
			state.SelectedProviderID = pending.ProviderID
		}
	}
	return state, nil
}

// View assembles the payment step for the cart.
func (o *Orchestrator) View(ctx context.Context, sessionID string, cart *commerce.Cart) (*View, error) {
	providers, err := o.Providers(ctx, cart)
	if err != nil {
		return nil, err
	}
	state, err := o.State(ctx, sessionID, cart)
	if err != nil {
		return nil, err
	}
	_, breakdown, err := o.cards.Get(ctx, sessionID, cart.ID)
	if err != nil {
		return nil, err
	}

	view := &View{
		Providers:       providers,
		State:           state,
		GiftCardCovered: cart.GiftCardCovered(),
		HasCardData:     breakdown != nil,
	}
	if selected := o.selected(state); selected != nil {
		view.Selected = selected
		if selected.CollectsInstrument() {
			view.Financing = breakdown
		}
	}
	view.ActiveSession = ActiveSession(cart, view.Selected)
	view.CanSubmit = CanSubmit(state, view.Selected, cart)
	return view, nil
}

// Select makes providerID the selected provider. Session-based providers get a pending
// session created (or replaced) immediately; other classes never touch the generic
// session. Re-selecting the wallet provider restarts instrument collection.
func (o *Orchestrator) Select(ctx context.Context, sessionID string, cart *commerce.Cart, providerID string) (*commerce.Cart, LocalState, error) {
	providers, err := o.Providers(ctx, cart)
	if err != nil {
		return nil, LocalState{}, err
	}
	provider, ok := findProvider(providers, providerID)
	if !ok {
		return nil, LocalState{}, pkgerrors.New(pkgerrors.CodeValidation, "payment provider is not available for this cart")
	}

	state, err := o.State(ctx, sessionID, cart)
	if err != nil {
		return nil, LocalState{}, err
	}
	reselected := state.SelectedProviderID == provider.ID

	state.SelectedProviderID = provider.ID
	state.Error = ""
	state.CardComplete = false
	state.CardBrand = ""

	if provider.CollectsInstrument() && reselected {
		if err := o.cards.Clear(ctx, sessionID); err != nil {
			return nil, LocalState{}, err
		}
	}

	updated := cart
	if provider.CreatesSession() {
		updated, err = o.backend.InitiatePaymentSession(ctx, cart, provider.ID)
		if err != nil {
			state.Error = pkgerrors.MessageOf(err)
			if saveErr := o.saveState(ctx, sessionID, cart.ID, state); saveErr != nil {
				return nil, LocalState{}, saveErr
			}
			return nil, state, err
		}
	}

	if err := o.saveState(ctx, sessionID, cart.ID, state); err != nil {
		return nil, LocalState{}, err
	}
	o.log(ctx, cart.ID, provider, "payments.provider_selected")
	return updated, state, nil
}

// UpdateCard records the card element's completeness and detected brand.
func (o *Orchestrator) UpdateCard(ctx context.Context, sessionID string, cart *commerce.Cart, complete bool, brand string) (LocalState, error) {
	state, err := o.State(ctx, sessionID, cart)
	if err != nil {
		return LocalState{}, err
	}
	state.CardComplete = complete
	state.CardBrand = strings.TrimSpace(brand)
	if complete {
		state.Error = ""
	}
	if err := o.saveState(ctx, sessionID, cart.ID, state); err != nil {
		return LocalState{}, err
	}
	return state, nil
}

// ReportWalletError is the wallet widget's error channel. The message is logged and
// becomes the step's inline error.
func (o *Orchestrator) ReportWalletError(ctx context.Context, sessionID string, cart *commerce.Cart, message string) (LocalState, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return LocalState{}, pkgerrors.New(pkgerrors.CodeValidation, "wallet error message is required")
	}
	state, err := o.State(ctx, sessionID, cart)
	if err != nil {
		return LocalState{}, err
	}
	state.Error = message
	if err := o.saveState(ctx, sessionID, cart.ID, state); err != nil {
		return LocalState{}, err
	}
	if o.logg != nil {
		logCtx := o.logg.WithFields(ctx, map[string]any{
			"cart_id":     cart.ID,
			"provider_id": state.SelectedProviderID,
			"message":     message,
		})
		o.logg.Warn(logCtx, "payments.wallet_widget_error")
	}
	return state, nil
}

// CollectWalletInstrument stores the Card Payment Data produced by the wallet widget and
// moves the flow to review.
func (o *Orchestrator) CollectWalletInstrument(ctx context.Context, sessionID string, cart *commerce.Cart, data financing.CardPaymentData) (*financing.Breakdown, enums.Step, error) {
	state, err := o.State(ctx, sessionID, cart)
	if err != nil {
		return nil, "", err
	}
	selected := o.selected(state)
	if selected == nil || !selected.CollectsInstrument() {
		return nil, "", pkgerrors.New(pkgerrors.CodeStateConflict, "wallet provider is not selected")
	}
	if data.CartID == "" {
		data.CartID = cart.ID
	}
	if data.CartID != cart.ID {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "card payment data belongs to a different cart")
	}

	breakdown, err := o.cards.Set(ctx, sessionID, data)
	if err != nil {
		return nil, "", err
	}
	if state.Error != "" {
		state.Error = ""
		if err := o.saveState(ctx, sessionID, cart.ID, state); err != nil {
			return nil, "", err
		}
	}
	o.log(ctx, cart.ID, *selected, "payments.wallet_instrument_collected")
	return breakdown, steps.Next(enums.StepPayment, steps.WalletCollected), nil
}

// Submit advances the payment step.
func (o *Orchestrator) Submit(ctx context.Context, sessionID string, cart *commerce.Cart) (*SubmitResult, error) {
	state, err := o.State(ctx, sessionID, cart)
	if err != nil {
		return nil, err
	}
	selected := o.selected(state)
	if !CanSubmit(state, selected, cart) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment details are incomplete")
	}

	switch {
	case selected != nil && selected.CreatesSession():
		updated := cart
		if cart.PendingSessionFor(selected.ID) == nil {
			updated, err = o.backend.InitiatePaymentSession(ctx, cart, selected.ID)
			if err != nil {
				state.Error = pkgerrors.MessageOf(err)
				if saveErr := o.saveState(ctx, sessionID, cart.ID, state); saveErr != nil {
					return nil, saveErr
				}
				return nil, err
			}
		}
		return &SubmitResult{Cart: updated, Next: steps.Next(enums.StepPayment, steps.PaymentSubmitted)}, nil
	case selected != nil && !selected.RequiresSubmission():
		return &SubmitResult{Cart: cart, Next: enums.StepPayment, Deferred: true}, nil
	default:
		return &SubmitResult{Cart: cart, Next: steps.Next(enums.StepPayment, steps.PaymentSubmitted)}, nil
	}
}

// SelectedProvider returns the classified selected provider, or nil.
func (o *Orchestrator) SelectedProvider(ctx context.Context, sessionID string, cart *commerce.Cart) (*Provider, error) {
	state, err := o.State(ctx, sessionID, cart)
	if err != nil {
		return nil, err
	}
	return o.selected(state), nil
}

// CanSubmit gates the submit control: a session-based provider needs a complete
// instrument, and without a provider the total must be gift-card covered.
func CanSubmit(state LocalState, selected *Provider, cart *commerce.Cart) bool {
	if selected == nil {
		return cart.GiftCardCovered()
	}
	if selected.CreatesSession() && !state.CardComplete {
		return false
	}
	return true
}

// ActiveSession is the pending session that counts for submission: only the one owned
// by the selected session-based provider.
func ActiveSession(cart *commerce.Cart, selected *Provider) *commerce.PaymentSession {
	if selected == nil || !selected.CreatesSession() {
		return nil
	}
	return cart.PendingSessionFor(selected.ID)
}

func (o *Orchestrator) selected(state LocalState) *Provider {
	if strings.TrimSpace(state.SelectedProviderID) == "" {
		return nil
	}
	p := o.catalog.Classify(state.SelectedProviderID)
	return &p
}

func (o *Orchestrator) saveState(ctx context.Context, sessionID, cartID string, state LocalState) error {
	return o.states.Save(ctx, sessionID, sessionstore.KindPaymentState, cartID, state)
}

func (o *Orchestrator) log(ctx context.Context, cartID string, p Provider, msg string) {
	if o.logg == nil {
		return
	}
	logCtx := o.logg.WithFields(ctx, map[string]any{
		"cart_id":       cartID,
		"provider_id":   p.ID,
		"provider_kind": p.Kind.String(),
	})
	o.logg.Info(logCtx, msg)
}

func findProvider(providers []Provider, id string) (Provider, bool) {
	id = strings.TrimSpace(id)
	for _, p := range providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}
