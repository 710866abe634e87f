package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind names one record held for a checkout session.
type Kind string

const (
	KindCardData          Kind = "card_data"
	KindFinancingSnapshot Kind = "financing_snapshot"
	KindPaymentState      Kind = "payment_state"
	KindCharge            Kind = "charge"
)

// ErrCartMismatch is returned by Load when the stored record was bound to another cart.
// The record has already been deleted when this is returned.
var ErrCartMismatch = errors.New("stored checkout data belongs to a different cart")

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CheckoutKey(sessionID, kind string) string
}

// Store keeps per-checkout-session records in Redis. Every record carries the cart id
// it was written for and every read checks it against the active cart.
type Store struct {
	kv  kv
	ttl time.Duration
	now func() time.Time
}

type record struct {
	CartID  string          `json:"cart_id"`
	SavedAt time.Time       `json:"saved_at"`
	Payload json.RawMessage `json:"payload"`
}

// New returns a Store writing records with the given TTL (zero keeps them until deleted).
func New(kv kv, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl, now: time.Now}
}

// Save writes value bound to cartID.
func (s *Store) Save(ctx context.Context, sessionID string, kind Kind, cartID string, value any) error {
	if err := validateKeys(sessionID, cartID); err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	raw, err := json.Marshal(record{CartID: cartID, SavedAt: s.now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s record: %w", kind, err)
	}
	if err := s.kv.Set(ctx, s.key(sessionID, kind), string(raw), s.ttl); err != nil {
		return fmt.Errorf("store %s: %w", kind, err)
	}
	return nil
}

// Load decodes the record into out. It reports false when nothing is stored. A record
// bound to a different cart is deleted and ErrCartMismatch is returned.
func (s *Store) Load(ctx context.Context, sessionID string, kind Kind, activeCartID string, out any) (bool, error) {
	if err := validateKeys(sessionID, activeCartID); err != nil {
		return false, err
	}
	key := s.key(sessionID, kind)
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", kind, err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// unreadable records are dropped rather than trusted
		_ = s.kv.Del(ctx, key)
		return false, nil
	}
	if rec.CartID != activeCartID {
		if err := s.kv.Del(ctx, key); err != nil {
			return false, fmt.Errorf("invalidate %s: %w", kind, err)
		}
		return false, ErrCartMismatch
	}
	if err := json.Unmarshal(rec.Payload, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", kind, err)
	}
	return true, nil
}

// Delete removes the given kinds for the session.
func (s *Store) Delete(ctx context.Context, sessionID string, kinds ...Kind) error {
	if strings.TrimSpace(sessionID) == "" || len(kinds) == 0 {
		return nil
	}
	keys := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		keys = append(keys, s.key(sessionID, kind))
	}
	if err := s.kv.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete checkout records: %w", err)
	}
	return nil
}

func (s *Store) key(sessionID string, kind Kind) string {
	return s.kv.CheckoutKey(sessionID, string(kind))
}

func validateKeys(sessionID, cartID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("checkout session id is required")
	}
	if strings.TrimSpace(cartID) == "" {
		return errors.New("cart id is required")
	}
	return nil
}
