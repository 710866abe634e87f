package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id string) error
	MarkFailedTx(tx *gorm.DB, id string, err error) error
	MarkTerminalTx(tx *gorm.DB, id string, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type RelayParams struct {
	Outbox       config.OutboxConfig
	Logger       *logger.Logger
	DB           dbClient
	PubSub       pubSubClient
	Repository   outboxRepository
	Registry     registryResolver
	DLQ          dlqRepository
	Metrics      *metrics.OutboxMetrics
	NewPublisher publisherFactory
}

// Relay moves outbox rows to Pub/Sub. Each batch is claimed, published and
// settled inside one transaction so a crash leaves the rows claimable again.
type Relay struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	metrics      *metrics.OutboxMetrics
	publishers   *publisherCache
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	case p.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	}

	factory := p.NewPublisher
	if factory == nil {
		factory = func(topic string) publisher { return newGCPPublisher(p.PubSub.Publisher(topic)) }
	}
	return &Relay{
		logg:         p.Logger,
		db:           p.DB,
		pubsub:       p.PubSub,
		repo:         p.Repository,
		registry:     p.Registry,
		dlq:          p.DLQ,
		metrics:      p.Metrics,
		publishers:   newPublisherCache(factory),
		batchSize:    positiveOr(p.Outbox.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(p.Outbox.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(p.Outbox.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

// Run relays until ctx is canceled. A full batch is followed immediately by
// the next one; idle polls and failures wait with jitter, failures doubling
// up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	pace := newPacer(r.pollInterval, maxBackoff)
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		rows, err := r.relayBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = pace.failure()
		case rows > 0:
			pace.reset()
			continue
		default:
			wait = pace.idle()
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// delivery is one row in flight: either a publish result to wait on or the
// error that kept it from being published.
type delivery struct {
	row      models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
}

// relayBatch hands every claimed row to its publisher before waiting on any
// result so the Pub/Sub client can batch them, then records the outcomes.
func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)
		if claimed == 0 {
			return nil
		}
		r.metrics.ObserveBatch(claimed)

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		inFlight := make([]delivery, 0, len(rows))
		for _, row := range rows {
			inFlight = append(inFlight, r.dispatch(publishCtx, row))
		}
		for _, d := range inFlight {
			if d.err == nil {
				_, d.err = d.result.Get(publishCtx)
			}
			if err := r.settle(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (r *Relay) dispatch(ctx context.Context, row models.OutboxEvent) delivery {
	d := delivery{row: row}
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		d.err = registry.NewNonRetryableError(err)
		return d
	}
	d.resolved = resolved

	topic := resolved.Descriptor.Topic
	pub := r.publishers.get(topic)
	if pub == nil {
		d.err = registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
		return d
	}
	d.result = pub.Publish(ctx, &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"cart_id":        row.AggregateID,
			"occurred_at":    resolved.Envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	})
	if d.result == nil {
		d.err = registry.NewNonRetryableError(fmt.Errorf("publisher for topic %s returned no result", topic))
	}
	return d
}

// settle records the outcome of one delivery. Only bookkeeping failures are
// returned; they abort the batch transaction.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	ctx = r.logg.WithFields(ctx, deliveryFields(d))

	switch {
	case d.err == nil:
		if err := r.repo.MarkPublishedTx(tx, d.row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", d.row.ID, err)
		}
		r.metrics.IncEvent(metrics.OutboxPublished)
		r.logg.Info(ctx, "outbox.published")
		return nil
	case registry.IsNonRetryable(d.err):
		return r.deadLetter(ctx, tx, d.row, enums.OutboxDLQReasonNonRetryable, d.err)
	case d.row.AttemptCount+1 >= r.maxAttempts:
		return r.deadLetter(ctx, tx, d.row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", d.err))
	}

	r.logg.Warn(r.logg.WithField(ctx, "error", d.err.Error()), "outbox.publish_retry")
	if err := r.repo.MarkFailedTx(tx, d.row.ID, d.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", d.row.ID, err)
	}
	r.metrics.IncEvent(metrics.OutboxRetried)
	return nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"error_reason": reason, "error": msg}), "outbox.dead_lettered")

	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	r.metrics.IncEvent(metrics.OutboxDeadLettered)
	return nil
}

// Stop flushes and stops every publisher created by the relay.
func (r *Relay) Stop() {
	r.publishers.stopAll()
}

func deliveryFields(d delivery) map[string]any {
	fields := map[string]any{
		"outbox_id":     d.row.ID,
		"event_type":    d.row.EventType,
		"cart_id":       d.row.AggregateID,
		"attempt_count": d.row.AttemptCount,
	}
	if d.resolved != nil {
		fields["topic"] = d.resolved.Descriptor.Topic
		fields["event_id"] = d.resolved.Envelope.EventID
	}
	return fields
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
