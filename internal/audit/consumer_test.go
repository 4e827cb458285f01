package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-platform/lumina/internal/events"
)

func TestConvertEventToLog(t *testing.T) {
	ownerID := uuid.New()
	recordID := uuid.New()

	event := events.AuditEvent{
		OwnerUserID:  &ownerID,
		EventType:    events.TypeGenerationCompleted,
		Severity:     "info",
		ResourceType: "generation",
		ResourceID:   &recordID,
		Details:      "generation finished in 12.3s",
		Timestamp:    time.Now().UTC(),
	}

	log := convertEventToLog(event)

	require.NotNil(t, log.OwnerUserID)
	assert.Equal(t, ownerID, *log.OwnerUserID)
	assert.Equal(t, events.TypeGenerationCompleted, log.EventType)
	assert.Equal(t, "info", log.Severity)
	assert.Equal(t, "generation", log.ResourceType)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, recordID, *log.ResourceID)

	var details map[string]string
	require.NoError(t, json.Unmarshal(log.Details, &details))
	assert.Equal(t, "generation finished in 12.3s", details["message"])
}

func TestConvertEventToLog_Anonymous(t *testing.T) {
	event := events.AuditEvent{
		EventType: events.TypeGenerationRateLimited,
		Severity:  "warn",
		Origin:    "203.0.113.7",
		Details:   "quota exhausted",
		Timestamp: time.Now().UTC(),
	}

	log := convertEventToLog(event)

	assert.Nil(t, log.OwnerUserID)
	assert.Nil(t, log.ResourceID)
	assert.Equal(t, "203.0.113.7", log.Origin)
	assert.Equal(t, "warn", log.Severity)
}
