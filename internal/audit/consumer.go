package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/lumina-platform/lumina/internal/events"
)

// Consumer listens on the audit event subject and persists entries to the
// database.
type Consumer struct {
	repo *Repository
	js   jetstream.JetStream
}

func NewConsumer(repo *Repository, js jetstream.JetStream) *Consumer {
	return &Consumer{repo: repo, js: js}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := events.EnsureConsumer(ctx, c.js, "audit-persister", events.SubjectAuditEvent)
	if err != nil {
		return err
	}

	slog.Info("audit consumer started", "consumer", "audit-persister")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(events.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("audit consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var event events.AuditEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("audit consumer: unmarshaling event", "error", err)
		_ = msg.Nak()
		return
	}

	log := convertEventToLog(event)

	if err := c.repo.Insert(ctx, log); err != nil {
		slog.Error("audit consumer: persisting audit log", "error", err, "event_type", event.EventType)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("audit consumer: persisted event",
		"event_type", event.EventType,
		"owner", event.OwnerUserID,
		"resource_id", event.ResourceID,
	)
}

func convertEventToLog(event events.AuditEvent) *Log {
	log := &Log{
		OwnerUserID:  event.OwnerUserID,
		EventType:    event.EventType,
		Severity:     event.Severity,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Origin:       event.Origin,
		CreatedAt:    event.Timestamp,
	}

	detailsMap := map[string]string{"message": event.Details}
	if data, err := json.Marshal(detailsMap); err == nil {
		log.Details = data
	}
	return log
}
