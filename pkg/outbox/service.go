// Package outbox implements the transactional outbox used to relay checkout
// events to Pub/Sub without losing them when the broker is unavailable.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const uniqueEventAggregate = "ux_outbox_events_event_aggregate"

type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Data          any
	Version       int
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit writes event inside tx. The returned id is the envelope event id.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) (string, error) {
	if tx == nil {
		return "", ErrTxRequired
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return "", errors.New("aggregate id required")
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return "", err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		EventType:  string(event.EventType),
		OccurredAt: event.OccurredAt.UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}
	row := models.OutboxEvent{
		ID:            envelope.EventID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       json.RawMessage(payload),
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return "", err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     event.EventType,
			"aggregate_id":   event.AggregateID,
			"aggregate_type": event.AggregateType,
		}), "outbox event queued")
	}
	return envelope.EventID, nil
}

// EmitIfNotExists emits only the first event per type and aggregate. It reports
// whether a row was written.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) (bool, error) {
	if tx == nil {
		return false, ErrTxRequired
	}
	exists, err := s.repo.ExistsTx(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := s.Emit(ctx, tx, event); err != nil {
		if dbpkg.IsUniqueViolation(err, uniqueEventAggregate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
