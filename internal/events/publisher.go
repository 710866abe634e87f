// Package events publishes checkout lifecycle events to Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const defaultPublishTimeout = 10 * time.Second

type sender interface {
	Send(ctx context.Context, data []byte, attrs map[string]string) error
}

type topicSender struct {
	pub *gcppubsub.Publisher
}

func (t topicSender) Send(ctx context.Context, data []byte, attrs map[string]string) error {
	result := t.pub.Publish(ctx, &gcppubsub.Message{Data: data, Attributes: attrs})
	if result == nil {
		return fmt.Errorf("publisher returned nil result")
	}
	_, err := result.Get(ctx)
	return err
}

// Publisher wraps the checkout topic. A Publisher without a topic drops events.
type Publisher struct {
	sender sender
	logg   *logger.Logger
	now    func() time.Time
}

// NewPublisher returns a Publisher for pub; a nil pub disables publishing.
func NewPublisher(pub *gcppubsub.Publisher, logg *logger.Logger) *Publisher {
	p := &Publisher{logg: logg, now: time.Now}
	if pub != nil {
		p.sender = topicSender{pub: pub}
	}
	return p
}

// CheckoutCompleted publishes the completion event and waits for the server ack.
func (p *Publisher) CheckoutCompleted(ctx context.Context, evt CheckoutCompleted) error {
	if p == nil || p.sender == nil {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", TypeCheckoutCompleted, err)
	}
	envelope := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  TypeCheckoutCompleted,
		OccurredAt: p.now().UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	attrs := map[string]string{
		"event_id":    envelope.EventID,
		"event_type":  envelope.EventType,
		"cart_id":     evt.CartID,
		"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
	}
	if err := p.sender.Send(publishCtx, payload, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", TypeCheckoutCompleted, err)
	}
	if p.logg != nil {
		p.logg.Info(p.logg.WithFields(ctx, map[string]any{
			"event_id": envelope.EventID,
			"cart_id":  evt.CartID,
		}), "checkout event published")
	}
	return nil
}
