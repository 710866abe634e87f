package shipping

import (
	"context"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

type methodSetter interface {
	SetShippingMethod(ctx context.Context, cartID, optionID string) (*commerce.Cart, error)
}

// Selection is the outcome of one selection attempt. On failure CurrentOptionID holds
// the value restored by the rollback.
type Selection struct {
	CurrentOptionID string         `json:"current_option_id"`
	Cart            *commerce.Cart `json:"cart,omitempty"`
}

// Selector persists shipping method choices. Mutations for one cart run one at a time,
// so the value restored on failure is always one the backend confirmed. Without a
// CartLocker the guarantee holds within one process only.
type Selector struct {
	api     methodSetter
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	locker  CartLocker

	mu    sync.Mutex
	carts map[string]*cartEntry
}

type cartEntry struct {
	mu        sync.Mutex
	refs      int
	confirmed string
	current   string
}

func NewSelector(api methodSetter, m *metrics.CheckoutMetrics, logg *logger.Logger) *Selector {
	return &Selector{api: api, metrics: m, logg: logg, carts: make(map[string]*cartEntry)}
}

// WithLocker extends per-cart serialization across instances.
func (s *Selector) WithLocker(l CartLocker) *Selector {
	s.locker = l
	return s
}

// Select sets optionID as current and persists it. confirmedOptionID is the option the
// cart currently carries according to the caller's snapshot; it is only used when no
// other selection for the cart is in flight.
func (s *Selector) Select(ctx context.Context, cartID, confirmedOptionID, optionID string) (*Selection, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, commerce.ErrMissingCartID
	}
	if strings.TrimSpace(optionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping option id is required")
	}

	entry := s.acquire(cartID, confirmedOptionID)
	defer s.release(cartID, entry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, cartID)
		if err != nil {
			return &Selection{CurrentOptionID: entry.confirmed}, err
		}
		defer func() {
			if err := release(ctx); err != nil && s.logg != nil {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"cart_id": cartID, "error": err.Error()}), "shipping.lock_release_failed")
			}
		}()
	}

	previous := entry.confirmed
	s.setCurrent(entry, optionID)

	cart, err := s.api.SetShippingMethod(ctx, cartID, optionID)
	s.metrics.IncShippingSelection(err == nil)
	if err != nil {
		s.setCurrent(entry, previous)
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"cart_id":            cartID,
				"shipping_option_id": optionID,
				"reverted_to":        previous,
			})
			s.logg.Warn(logCtx, "shipping.selection_reverted")
		}
		return &Selection{CurrentOptionID: previous}, err
	}

	confirmed := optionID
	if current := cart.CurrentShippingMethod(); current != nil && current.ShippingOptionID != "" {
		confirmed = current.ShippingOptionID
	}
	entry.confirmed = confirmed
	s.setCurrent(entry, confirmed)
	return &Selection{CurrentOptionID: confirmed, Cart: cart}, nil
}

// Current returns the optimistic current option for a cart with a selection in flight.
func (s *Selector) Current(cartID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.carts[cartID]
	if !ok {
		return "", false
	}
	return entry.current, true
}

func (s *Selector) setCurrent(entry *cartEntry, optionID string) {
	s.mu.Lock()
	entry.current = optionID
	s.mu.Unlock()
}

func (s *Selector) acquire(cartID, confirmed string) *cartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.carts[cartID]
	if !ok {
		entry = &cartEntry{confirmed: confirmed, current: confirmed}
		s.carts[cartID] = entry
	}
	entry.refs++
	return entry
}

func (s *Selector) release(cartID string, entry *cartEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.refs--
	if entry.refs <= 0 {
		delete(s.carts, cartID)
	}
}
