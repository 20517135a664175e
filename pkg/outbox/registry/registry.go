package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/outbox/payloads"
)

// EventDescriptor binds an event type to its aggregate, topic and payload type.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row whose envelope and payload decoded cleanly.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries  map[enums.OutboxEventType]EventDescriptor
	validate *validator.Validate
}

// NonRetryableError marks a row that can never publish as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		PayloadFactory: func() any { return new(T) },
	}
}

var billingEvents = []EventDescriptor{
	describe[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder),
	describe[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder),
	describe[payloads.PaymentCreatedEvent](enums.EventPaymentCreated, enums.AggregatePayment),
	describe[payloads.PaymentStatusChangedEvent](enums.EventPaymentStatusChanged, enums.AggregatePayment),
	describe[payloads.SubscriptionCreatedEvent](enums.EventSubscriptionCreated, enums.AggregateSubscription),
	describe[payloads.SubscriptionStatusChangedEvent](enums.EventSubscriptionStatusChanged, enums.AggregateSubscription),
}

// NewEventRegistry routes every billing event to the configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.BillingTopic == "" {
		return nil, errors.New("billing topic is required")
	}
	reg := &EventRegistry{
		entries:  make(map[enums.OutboxEventType]EventDescriptor, len(billingEvents)),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, desc := range billingEvents {
		desc.Topic = cfg.BillingTopic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve decodes the row's envelope and typed payload. Every failure is a
// NonRetryableError since the stored row will not change between attempts.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	if err := r.validate.Struct(payload); err != nil {
		return nil, nonRetryable("invalid %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
