package events

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds all lifecycle and audit subjects.
const StreamEvents = "LUMINA_EVENTS"

// Subject constants.
const (
	SubjectGenerationEvent = "lumina.events.generation"
	SubjectAuditEvent      = "lumina.events.audit"
)

// Generation event types.
const (
	TypeGenerationCompleted   = "generation_completed"
	TypeGenerationFailed      = "generation_failed"
	TypeGenerationRateLimited = "generation_rate_limited"
	TypeImageDeleted          = "image_deleted"
)

// GenerationEvent is published once per generation attempt outcome.
type GenerationEvent struct {
	RecordID    uuid.UUID  `json:"record_id"`
	OwnerUserID *uuid.UUID `json:"owner_user_id,omitempty"`
	Origin      string     `json:"origin,omitempty"`
	EventType   string     `json:"event_type"`
	Model       string     `json:"model"`
	Duration    float64    `json:"duration_seconds"`
	Timestamp   time.Time  `json:"timestamp"`
}

// AuditEvent is published for compliance logging and persisted by the audit
// consumer.
type AuditEvent struct {
	OwnerUserID  *uuid.UUID `json:"owner_user_id,omitempty"`
	EventType    string     `json:"event_type"`
	Severity     string     `json:"severity"` // info, warn, error
	ResourceType string     `json:"resource_type"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty"`
	Details      string     `json:"details"`
	Origin       string     `json:"origin,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}
