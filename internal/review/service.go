// Package review gates and performs order completion.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/internal/events"
	"github.com/angelmondragon/storefront-checkout/internal/financing"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/sessionstore"
	"github.com/angelmondragon/storefront-checkout/internal/wallet"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

type orderBackend interface {
	GetCart(ctx context.Context, cartID string) (*commerce.Cart, error)
	CompleteOrder(ctx context.Context, req commerce.CompleteOrderRequest) (*commerce.CompletionResult, error)
}

type providerSelection interface {
	SelectedProvider(ctx context.Context, sessionID string, cart *commerce.Cart) (*payments.Provider, error)
}

type cardStore interface {
	Get(ctx context.Context, sessionID, activeCartID string) (*financing.CardPaymentData, *financing.Breakdown, error)
	Clear(ctx context.Context, sessionID string) error
	SaveSnapshot(ctx context.Context, sessionID, cartID string, breakdown *financing.Breakdown) error
	Snapshot(ctx context.Context, sessionID, cartID string) (*financing.Breakdown, error)
}

type chargeRecords interface {
	Save(ctx context.Context, sessionID string, kind sessionstore.Kind, cartID string, value any) error
	Load(ctx context.Context, sessionID string, kind sessionstore.Kind, activeCartID string, out any) (bool, error)
	Delete(ctx context.Context, sessionID string, kinds ...sessionstore.Kind) error
}

// IntentConfirmer checks a card payment intent before the order is completed.
type IntentConfirmer interface {
	ConfirmIntent(ctx context.Context, intentID string) error
}

type auditLog interface {
	Create(ctx context.Context, entry *models.CheckoutCompletion) error
	ListByCart(ctx context.Context, cartID string, limit int) ([]models.CheckoutCompletion, error)
}

// EventPublisher receives checkout lifecycle events.
type EventPublisher interface {
	CheckoutCompleted(ctx context.Context, evt events.CheckoutCompleted) error
}

// Deps wires the review service.
type Deps struct {
	Backend   orderBackend
	Payments  providerSelection
	Cards     cardStore
	Records   chargeRecords
	Charger   wallet.Charger
	Intents   IntentConfirmer
	Audit     auditLog
	Publisher EventPublisher
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

type Service struct {
	backend   orderBackend
	payments  providerSelection
	cards     cardStore
	records   chargeRecords
	charger   wallet.Charger
	intents   IntentConfirmer
	audit     auditLog
	publisher EventPublisher
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Backend == nil:
		return nil, errors.New("commerce backend is required")
	case deps.Payments == nil:
		return nil, errors.New("payment orchestrator is required")
	case deps.Cards == nil || deps.Records == nil:
		return nil, errors.New("checkout session stores are required")
	case deps.Charger == nil:
		return nil, errors.New("wallet charger is required")
	}
	return &Service{
		backend:   deps.Backend,
		payments:  deps.Payments,
		cards:     deps.Cards,
		records:   deps.Records,
		charger:   deps.Charger,
		intents:   deps.Intents,
		audit:     deps.Audit,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       time.Now,
	}, nil
}

// View is the review step.
type View struct {
	Gate      GateResult           `json:"gate"`
	Path      enums.CompletionPath `json:"path,omitempty"`
	Selected  *payments.Provider   `json:"selected,omitempty"`
	Financing *financing.Breakdown `json:"financing,omitempty"`
}

// Completion is a confirmed order. RedirectURL is the backend's target, untouched.
type Completion struct {
	OrderID     string               `json:"order_id,omitempty"`
	RedirectURL string               `json:"redirect_url"`
	Path        enums.CompletionPath `json:"path"`
	Financing   *financing.Breakdown `json:"financing,omitempty"`
}

// CompleteInput identifies one user-triggered completion attempt.
type CompleteInput struct {
	SessionID      string
	CartID         string
	IdempotencyKey string
}

// retainedCharge survives a failed completion so a retry does not charge twice.
// Breakdown holds the terms the charge was made with.
type retainedCharge struct {
	PaymentID string               `json:"payment_id"`
	ChargedAt time.Time            `json:"charged_at"`
	Breakdown *financing.Breakdown `json:"breakdown,omitempty"`
}

type purchasable struct {
	cart      *commerce.Cart
	selected  *payments.Provider
	data      *financing.CardPaymentData
	breakdown *financing.Breakdown
	gate      GateResult
	path      enums.CompletionPath
}

// View reports the gate and, on the wallet path, the financing breakdown.
func (s *Service) View(ctx context.Context, sessionID string, cart *commerce.Cart) (*View, error) {
	p, err := s.load(ctx, sessionID, cart)
	if err != nil {
		return nil, err
	}
	view := &View{Gate: p.gate, Selected: p.selected}
	if p.gate.Passed {
		view.Path = p.path
	}
	if p.path == enums.CompletionPathWallet {
		view.Financing = p.breakdown
	}
	return view, nil
}

// Complete turns the cart into an order. Nothing is retried automatically: a failure is
// returned with the provider or backend message and the caller retries by hand.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (*Completion, error) {
	cart, err := s.backend.GetCart(ctx, in.CartID)
	if err != nil {
		return nil, err
	}
	p, err := s.load(ctx, in.SessionID, cart)
	if err != nil {
		return nil, err
	}
	if !p.gate.Passed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not ready to be completed").WithDetails(p.gate)
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"cart_id":         cart.ID,
			"completion_path": p.path.String(),
		})
	}

	started := s.now()
	var (
		result    *commerce.CompletionResult
		paymentID string
	)
	if p.path == enums.CompletionPathWallet {
		result, paymentID, err = s.completeWallet(ctx, in, p)
	} else {
		result, paymentID, err = s.completeGeneric(ctx, p)
	}
	s.metrics.ObserveCompletion(p.path.String(), err == nil, s.now().Sub(started))
	s.recordAttempt(ctx, in, p, paymentID, result, err)

	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "checkout.completion_failed", err)
		}
		return nil, err
	}

	completion := &Completion{
		OrderID:     result.OrderID,
		RedirectURL: result.RedirectURL,
		Path:        p.path,
	}
	if p.path == enums.CompletionPathWallet {
		completion.Financing = p.breakdown
	}
	s.publishCompleted(ctx, in, p, paymentID, completion)
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "order_id", result.OrderID), "checkout.completed")
	}
	return completion, nil
}

// FinancingSnapshot returns the breakdown saved for the confirmation screen.
func (s *Service) FinancingSnapshot(ctx context.Context, sessionID, cartID string) (*financing.Breakdown, error) {
	return s.cards.Snapshot(ctx, sessionID, cartID)
}

// Attempts lists the audit entries for a cart.
func (s *Service) Attempts(ctx context.Context, cartID string, limit int) ([]models.CheckoutCompletion, error) {
	if s.audit == nil {
		return []models.CheckoutCompletion{}, nil
	}
	return s.audit.ListByCart(ctx, cartID, limit)
}

func (s *Service) load(ctx context.Context, sessionID string, cart *commerce.Cart) (*purchasable, error) {
	selected, err := s.payments.SelectedProvider(ctx, sessionID, cart)
	if err != nil {
		return nil, err
	}
	p := &purchasable{cart: cart, selected: selected, path: enums.CompletionPathGeneric}
	if selected != nil && selected.CollectsInstrument() {
		p.data, p.breakdown, err = s.cards.Get(ctx, sessionID, cart.ID)
		if err != nil {
			return nil, err
		}
		if p.data != nil {
			p.path = enums.CompletionPathWallet
		}
	}
	p.gate = Gate(cart, selected, p.data != nil)
	return p, nil
}

func (s *Service) completeWallet(ctx context.Context, in CompleteInput, p *purchasable) (*commerce.CompletionResult, string, error) {
	var charge retainedCharge
	found, err := s.records.Load(ctx, in.SessionID, sessionstore.KindCharge, p.cart.ID, &charge)
	if err != nil && !errors.Is(err, sessionstore.ErrCartMismatch) {
		return nil, "", err
	}

	if !found || charge.PaymentID == "" {
		req := wallet.NewChargeRequest(p.data, p.breakdown)
		req.CartID = p.cart.ID
		req.IdempotencyKey = chargeKey(in)
		res, err := s.charger.Charge(ctx, req)
		if err != nil {
			return nil, "", err
		}
		charge = retainedCharge{PaymentID: res.PaymentID, ChargedAt: s.now().UTC(), Breakdown: p.breakdown}
		if err := s.records.Save(ctx, in.SessionID, sessionstore.KindCharge, p.cart.ID, charge); err != nil {
			// the charge went through; completion can still proceed on this attempt
			if s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "payment_id", charge.PaymentID), "checkout.charge_not_retained", err)
			}
		}
	} else {
		s.reuseCharge(ctx, p, charge)
	}

	if err := s.cards.SaveSnapshot(ctx, in.SessionID, p.cart.ID, p.breakdown); err != nil {
		return nil, charge.PaymentID, err
	}

	result, err := s.backend.CompleteOrder(ctx, commerce.CompleteOrderRequest{
		CartID:     p.cart.ID,
		PaymentID:  charge.PaymentID,
		ProviderID: p.selected.ID,
	})
	if err != nil {
		return nil, charge.PaymentID, err
	}

	if err := s.cards.Clear(ctx, in.SessionID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.card_data_not_cleared", err)
	}
	if err := s.records.Delete(ctx, in.SessionID, sessionstore.KindCharge); err != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.charge_not_cleared", err)
	}
	return result, charge.PaymentID, nil
}

// reuseCharge completes against an earlier charge. A newer instrument collected after
// that charge does not change what the shopper paid, so the charged terms are what the
// snapshot and audit record.
func (s *Service) reuseCharge(ctx context.Context, p *purchasable, charge retainedCharge) {
	changed := charge.Breakdown != nil && !sameTerms(charge.Breakdown, p.breakdown)
	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "payment_id", charge.PaymentID)
		if changed {
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"charged_installments":   charge.Breakdown.Installments,
				"collected_installments": installmentsOf(p.breakdown),
			})
			s.logg.Warn(logCtx, "checkout.retained_charge_terms_differ")
		} else {
			s.logg.Info(logCtx, "checkout.reusing_retained_charge")
		}
	}
	if changed {
		p.breakdown = charge.Breakdown
	}
}

func sameTerms(a, b *financing.Breakdown) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Installments == b.Installments &&
		a.TotalFinancedAmount.Equal(b.TotalFinancedAmount) &&
		a.OriginalAmount.Equal(b.OriginalAmount)
}

func installmentsOf(b *financing.Breakdown) int {
	if b == nil {
		return 0
	}
	return b.Installments
}

func (s *Service) completeGeneric(ctx context.Context, p *purchasable) (*commerce.CompletionResult, string, error) {
	req := commerce.CompleteOrderRequest{CartID: p.cart.ID}
	if p.selected != nil {
		req.ProviderID = p.selected.ID
	}

	var session *commerce.PaymentSession
	if p.selected != nil {
		session = p.cart.PendingSessionFor(p.selected.ID)
	}
	if session != nil {
		req.PaymentID = session.ID
		if p.selected.CreatesSession() && s.intents != nil {
			if intentID := intentIDFor(session); intentID != "" {
				if err := s.intents.ConfirmIntent(ctx, intentID); err != nil {
					return nil, req.PaymentID, err
				}
			}
		}
	}

	result, err := s.backend.CompleteOrder(ctx, req)
	if err != nil {
		return nil, req.PaymentID, err
	}
	return result, req.PaymentID, nil
}

func (s *Service) recordAttempt(ctx context.Context, in CompleteInput, p *purchasable, paymentID string, result *commerce.CompletionResult, err error) {
	if s.audit == nil {
		return
	}
	entry := &models.CheckoutCompletion{
		ID:              uuid.NewString(),
		CartID:          p.cart.ID,
		CheckoutSession: in.SessionID,
		Path:            p.path,
		PaymentID:       optional(paymentID),
		IdempotencyKey:  optional(in.IdempotencyKey),
		Success:         err == nil,
		CreatedAt:       s.now().UTC(),
	}
	if p.selected != nil {
		entry.ProviderID = p.selected.ID
	}
	if result != nil {
		entry.RedirectURL = optional(result.RedirectURL)
	}
	if err != nil {
		entry.ErrorMessage = optional(pkgerrors.MessageOf(err))
	}
	if p.path == enums.CompletionPathWallet && p.breakdown != nil {
		if raw, mErr := json.Marshal(p.breakdown); mErr == nil {
			entry.Financing = optional(string(raw))
		}
	}
	if auditErr := s.audit.Create(ctx, entry); auditErr != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.audit_write_failed", auditErr)
	}
}

func (s *Service) publishCompleted(ctx context.Context, in CompleteInput, p *purchasable, paymentID string, c *Completion) {
	if s.publisher == nil {
		return
	}
	evt := events.CheckoutCompleted{
		CartID:          p.cart.ID,
		OrderID:         c.OrderID,
		CheckoutSession: in.SessionID,
		Path:            c.Path.String(),
		PaymentID:       paymentID,
		RedirectURL:     c.RedirectURL,
		Financing:       c.Financing,
	}
	if p.selected != nil {
		evt.ProviderID = p.selected.ID
	}
	if err := s.publisher.CheckoutCompleted(ctx, evt); err != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.event_publish_failed", err)
	}
}

// intentIDFor reads the payment intent id from a card session, falling back to the
// prefix of the client secret ("pi_x_secret_y").
func intentIDFor(session *commerce.PaymentSession) string {
	if id := session.SessionString("id"); strings.HasPrefix(id, "pi_") {
		return id
	}
	secret := session.SessionString("client_secret")
	if i := strings.Index(secret, "_secret_"); i > 0 {
		return secret[:i]
	}
	return ""
}

func chargeKey(in CompleteInput) string {
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		return "charge-" + key
	}
	return "charge-" + uuid.NewString()
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
