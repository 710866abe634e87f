// Package registry maps outbox event types to their topic and payload schema.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	// NewPayload returns a pointer the envelope data is decoded into.
	NewPayload func() any
	// Validate checks the decoded payload against the row it came from.
	Validate func(event models.OutboxEvent, payload any) error
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.CheckoutTopic)
	if topic == "" {
		return nil, errors.New("checkout topic is required")
	}
	return &EventRegistry{byType: map[enums.OutboxEventType]EventDescriptor{
		enums.EventCheckoutCompleted: {
			EventType:     enums.EventCheckoutCompleted,
			AggregateType: enums.AggregateCart,
			Topic:         topic,
			NewPayload:    func() any { return &payloads.CheckoutCompletedEvent{} },
			Validate:      validateCheckoutCompleted,
		},
	}}, nil
}

// Resolve decodes and validates a row. Every error it returns is a
// NonRetryableError since the stored row will not change between attempts.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.byType[event.EventType]
	switch {
	case !ok:
		return nil, rejectf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, rejectf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case strings.TrimSpace(event.AggregateID) == "":
		return nil, rejectf("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, rejectf("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || string(data) == "null" {
		return nil, rejectf("payload missing for %s", event.EventType)
	}

	payload := desc.NewPayload()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, rejectf("decode %s payload: %w", event.EventType, err)
	}
	if desc.Validate != nil {
		if err := desc.Validate(event, payload); err != nil {
			return nil, NewNonRetryableError(err)
		}
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func validateCheckoutCompleted(event models.OutboxEvent, payload any) error {
	evt, ok := payload.(*payloads.CheckoutCompletedEvent)
	switch {
	case !ok:
		return fmt.Errorf("unexpected payload type %T", payload)
	case evt.CartID != event.AggregateID:
		return fmt.Errorf("payload cart %q does not match aggregate %q", evt.CartID, event.AggregateID)
	case strings.TrimSpace(evt.RedirectURL) == "":
		return errors.New("checkout completed without redirect url")
	}
	return nil
}
