package main

import (
	"context"
	"errors"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/outbox/registry"
)

type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
	// Resume unblocks an ordering key after a failed publish.
	Resume(orderingKey string)
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisherFactory func(topic string) topicPublisher

// buildMessage keys messages by aggregate so every event of one order,
// payment or subscription is delivered in commit order.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
		},
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) topicPublisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p: p}
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{r: g.p.Publish(ctx, msg)}
}

func (g gcpPublisher) Resume(orderingKey string) {
	if orderingKey != "" {
		g.p.ResumePublish(orderingKey)
	}
}

type gcpResult struct {
	r *gcppubsub.PublishResult
}

func (g gcpResult) Get(ctx context.Context) (string, error) {
	if g.r == nil {
		return "", errors.New("publish result is nil")
	}
	return g.r.Get(ctx)
}
