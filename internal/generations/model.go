package generations

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one generation attempt.
type Status string

const (
	StatusPending     Status = "pending"
	StatusGenerating  Status = "generating"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusRateLimited Status = "rate_limited"
)

// Config is the caller-supplied generation configuration, stored verbatim on
// the record for audit.
type Config struct {
	AspectRatio string `json:"aspect_ratio"`
	Model       string `json:"model"`
	Resolution  string `json:"resolution,omitempty"`
	Style       string `json:"style,omitempty"`
}

// Record is the auditable trail of a single attempt. Records transition from
// generating to exactly one terminal state and are never deleted.
type Record struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Origin      string     `json:"origin,omitempty"`
	Status      Status     `json:"status"`
	Prompt      string     `json:"prompt"`
	Config      Config     `json:"config"`
	ImageID     *uuid.UUID `json:"image_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
