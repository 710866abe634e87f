package financing

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/internal/sessionstore"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type records interface {
	Save(ctx context.Context, sessionID string, kind sessionstore.Kind, cartID string, value any) error
	Load(ctx context.Context, sessionID string, kind sessionstore.Kind, activeCartID string, out any) (bool, error)
	Delete(ctx context.Context, sessionID string, kinds ...sessionstore.Kind) error
}

// Store is the only writer of Card Payment Data for a checkout session. The breakdown
// is recomputed on every write and every load, so no derived figures are persisted
// alongside the card data.
type Store struct {
	records records
	logg    *logger.Logger
}

func NewStore(records records, logg *logger.Logger) *Store {
	return &Store{records: records, logg: logg}
}

// Set persists data bound to data.CartID and returns the fresh breakdown.
func (s *Store) Set(ctx context.Context, sessionID string, data CardPaymentData) (*Breakdown, error) {
	if err := s.records.Save(ctx, sessionID, sessionstore.KindCardData, data.CartID, data); err != nil {
		return nil, err
	}
	return Derive(&data), nil
}

// Get returns the stored card data and its breakdown for the active cart. Data bound
// to another cart clears both the card data and the financing snapshot, and nothing
// is returned.
func (s *Store) Get(ctx context.Context, sessionID, activeCartID string) (*CardPaymentData, *Breakdown, error) {
	var data CardPaymentData
	found, err := s.records.Load(ctx, sessionID, sessionstore.KindCardData, activeCartID, &data)
	if errors.Is(err, sessionstore.ErrCartMismatch) {
		s.warnMismatch(ctx, activeCartID, "card_data")
		if err := s.records.Delete(ctx, sessionID, sessionstore.KindFinancingSnapshot); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, nil
	}
	return &data, Derive(&data), nil
}

// Clear removes the card data; the breakdown goes with it.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.records.Delete(ctx, sessionID, sessionstore.KindCardData)
}

// SaveSnapshot stores the breakdown shown on the post-purchase confirmation screen,
// under a key distinct from the card data.
func (s *Store) SaveSnapshot(ctx context.Context, sessionID, cartID string, breakdown *Breakdown) error {
	if breakdown == nil {
		return nil
	}
	if err := s.records.Save(ctx, sessionID, sessionstore.KindFinancingSnapshot, cartID, breakdown); err != nil {
		return fmt.Errorf("save financing snapshot: %w", err)
	}
	return nil
}

// Snapshot returns the confirmation breakdown for cartID, or nil.
func (s *Store) Snapshot(ctx context.Context, sessionID, cartID string) (*Breakdown, error) {
	var breakdown Breakdown
	found, err := s.records.Load(ctx, sessionID, sessionstore.KindFinancingSnapshot, cartID, &breakdown)
	if errors.Is(err, sessionstore.ErrCartMismatch) {
		s.warnMismatch(ctx, cartID, "financing_snapshot")
		if err := s.records.Delete(ctx, sessionID, sessionstore.KindCardData); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil || !found {
		return nil, err
	}
	return &breakdown, nil
}

func (s *Store) warnMismatch(ctx context.Context, cartID, record string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"active_cart_id": cartID, "record": record})
	s.logg.Warn(ctx, "financing.stale_record_invalidated")
}
