package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/metrics"
	"github.com/openbillingstore/billing-core/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// RelayParams wires the outbox relay.
type RelayParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         txRunner
	PubSub     pubSubClient
	Repository outboxRepository
	DLQ        dlqRepository
	Registry   eventResolver
	Metrics    *metrics.OutboxMetrics
	// Publishers overrides the Pub/Sub backed factory in tests.
	Publishers publisherFactory
	Clock      func() time.Time
}

// Relay moves committed billing events from the outbox table to Pub/Sub.
// Rows are claimed with SKIP LOCKED, so several relays can run side by side.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pubsub      pubSubClient
	repo        outboxRepository
	dlq         dlqRepository
	registry    eventResolver
	metrics     *metrics.OutboxMetrics
	publishers  publisherFactory
	now         func() time.Time
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

func (o outcome) label() string {
	switch o {
	case outcomePublished:
		return metrics.OutboxOutcomePublished
	case outcomeRetry:
		return metrics.OutboxOutcomeRetry
	default:
		return metrics.OutboxOutcomeDeadLetter
	}
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		pubsub:      p.PubSub,
		repo:        p.Repository,
		dlq:         p.DLQ,
		registry:    p.Registry,
		metrics:     p.Metrics,
		publishers:  p.Publishers,
		now:         p.Clock,
		batchSize:   p.Config.Outbox.BatchSize,
		maxAttempts: p.Config.Outbox.MaxAttempts,
		poll:        time.Duration(p.Config.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.publishers == nil {
		r.publishers = func(topic string) topicPublisher {
			return newGCPPublisher(p.PubSub.Publisher(topic))
		}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	return r, nil
}

// Run drains the outbox until ctx ends. A full batch is followed immediately
// by the next one; an empty poll sleeps, and batch errors back off
// exponentially up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		claimed, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait = min(wait*2, maxBackoff)
		case claimed > 0:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}

		if err := sleep(ctx, wait+time.Duration(rand.Int64N(int64(jitterWindow)))); err != nil {
			return err
		}
	}
}

// drain claims one batch inside a transaction and settles every row before
// commit. It returns the number of rows claimed.
func (r *Relay) drain(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		for _, event := range events {
			result, err := r.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			r.metrics.Observe(string(event.EventType), result.label())
		}
		return nil
	})
	return claimed, err
}

// dispatch publishes one row and records its fate. The returned error is a
// storage failure that aborts the batch.
func (r *Relay) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	})

	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLetter, r.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	logCtx = r.logg.WithFields(logCtx, map[string]any{
		"event_id": resolved.Envelope.EventID,
		"topic":    resolved.Descriptor.Topic,
	})

	err = r.publish(ctx, event, resolved)
	if err == nil {
		if markErr := r.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		r.metrics.ObserveLag(string(event.EventType), r.now().Sub(event.CreatedAt))
		r.logg.Info(logCtx, "outbox event published")
		return outcomePublished, nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return outcomeDeadLetter, r.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	if event.AttemptCount+1 >= r.maxAttempts {
		return outcomeDeadLetter, r.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", err))
	}

	r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "outbox publish failed, will retry")
	if markErr := r.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return outcomeRetry, nil
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := buildMessage(event, resolved)
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		pub.Resume(msg.OrderingKey)
		return err
	}
	return nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": reason,
	}), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      r.now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
