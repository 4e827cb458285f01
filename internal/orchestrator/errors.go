package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/lumina-platform/lumina/internal/ratelimit"
)

// ErrQuotaUnavailable means the limiter state could not be read or written.
// Requests are rejected rather than admitted unmetered.
var ErrQuotaUnavailable = errors.New("quota state unavailable")

// ErrModelInvocation wraps any failure of the external model call, including
// timeout and missing image data.
var ErrModelInvocation = errors.New("model invocation failed")

// RateLimitError is the terminal outcome of an exhausted quota. No generation
// record exists for the rejected request.
type RateLimitError struct {
	Keyspace   ratelimit.Keyspace
	Reason     string
	RetryAfter time.Duration
	RetryAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%s): retry after %s", e.Reason, e.RetryAfter.Round(time.Second))
}
