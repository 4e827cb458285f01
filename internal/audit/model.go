package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Log matches the audit_logs table schema. Owner is nil for anonymous
// generations, which are keyed by origin instead.
type Log struct {
	ID           uuid.UUID       `json:"id"`
	OwnerUserID  *uuid.UUID      `json:"owner_user_id,omitempty"`
	EventType    string          `json:"event_type"`
	Severity     string          `json:"severity"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	Origin       string          `json:"origin,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for audit queries.
type ListParams struct {
	EventType string
	Severity  string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

func DefaultListParams() ListParams {
	return ListParams{Page: 1, PageSize: 20}
}
