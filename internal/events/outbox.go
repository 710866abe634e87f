package events

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

// OutboxWriter records checkout events in the outbox table instead of
// publishing them; cmd/outbox-publisher relays them to Pub/Sub.
type OutboxWriter struct {
	db     txRunner
	outbox outboxEmitter
	logg   *logger.Logger
}

func NewOutboxWriter(db txRunner, svc *outbox.Service, logg *logger.Logger) *OutboxWriter {
	return &OutboxWriter{db: db, outbox: svc, logg: logg}
}

// CheckoutCompleted queues the completion event. A cart produces at most one.
func (w *OutboxWriter) CheckoutCompleted(ctx context.Context, evt CheckoutCompleted) error {
	var wrote bool
	err := w.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		wrote, err = w.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCheckoutCompleted,
			AggregateType: enums.AggregateCart,
			AggregateID:   evt.CartID,
			Data:          evt,
			Version:       envelopeVersion,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("queue %s: %w", TypeCheckoutCompleted, err)
	}
	if !wrote && w.logg != nil {
		w.logg.Warn(w.logg.WithField(ctx, "cart_id", evt.CartID), "checkout event already queued for cart")
	}
	return nil
}
