package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
// All methods on a nil Publisher are no-ops, which is how the service runs
// when NATS is not configured.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishGenerationEvent publishes a generation lifecycle event.
func (p *Publisher) PublishGenerationEvent(ctx context.Context, event GenerationEvent) {
	p.publish(ctx, SubjectGenerationEvent, event)
}

// PublishAuditEvent publishes an audit event.
func (p *Publisher) PublishAuditEvent(ctx context.Context, event AuditEvent) {
	p.publish(ctx, SubjectAuditEvent, event)
}

// publish is fire-and-forget: a generation that succeeded must not fail the
// request because the event bus is down.
func (p *Publisher) publish(ctx context.Context, subject string, data any) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("marshaling event", "subject", subject, "error", err)
		return
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		slog.Warn("publishing event", "subject", subject, "error", err)
	}
}

// EnsureConsumer creates or updates a durable consumer on the event stream.
func EnsureConsumer(ctx context.Context, js jetstream.JetStream, name, filterSubject string) (jetstream.Consumer, error) {
	consumer, err := js.CreateOrUpdateConsumer(ctx, StreamEvents, jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring consumer %s on %s: %w", name, StreamEvents, err)
	}
	return consumer, nil
}
