package generations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition reports an attempt to move a record out of a state it
// is not in, such as writing a terminal state twice. This signals a
// programming defect in the caller, not a user-facing condition.
var ErrInvalidTransition = errors.New("invalid generation record transition")

// Service is the sole writer of generation records. Exactly one of Complete
// or Fail must follow every Create.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create inserts a record in the generating state and returns its ID.
func (s *Service) Create(ctx context.Context, userID *uuid.UUID, origin, prompt string, cfg Config) (uuid.UUID, error) {
	rec := &Record{
		ID:        uuid.New(),
		UserID:    userID,
		Origin:    origin,
		Status:    StatusGenerating,
		Prompt:    prompt,
		Config:    cfg,
		StartedAt: time.Now(),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return uuid.Nil, err
	}
	return rec.ID, nil
}

// Complete transitions the record to completed and links the image.
func (s *Service) Complete(ctx context.Context, recordID, imageID uuid.UUID) error {
	err := s.repo.MarkCompleted(ctx, recordID, imageID, time.Now())
	if errors.Is(err, ErrNotTransitioned) {
		return fmt.Errorf("completing record %s: %w", recordID, ErrInvalidTransition)
	}
	return err
}

// Fail transitions the record to failed and stores the error text.
func (s *Service) Fail(ctx context.Context, recordID uuid.UUID, message string) error {
	err := s.repo.MarkFailed(ctx, recordID, message, time.Now())
	if errors.Is(err, ErrNotTransitioned) {
		return fmt.Errorf("failing record %s: %w", recordID, ErrInvalidTransition)
	}
	return err
}

// Get returns a record for audit inspection, or nil when absent.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByUser returns a user's attempt history, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Record, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
