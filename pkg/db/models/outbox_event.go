package models

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// OutboxEvent is an append-only event waiting to be relayed to Pub/Sub.
// Payload holds the full JSON envelope.
type OutboxEvent struct {
	ID            string                    `gorm:"column:id;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   string                    `gorm:"column:aggregate_id;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
