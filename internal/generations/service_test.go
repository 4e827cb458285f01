package generations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo mirrors the conditional-update guard of the Postgres repository.
type fakeRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]*Record)}
}

func (f *fakeRepo) Insert(_ context.Context, rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) MarkCompleted(_ context.Context, id, imageID uuid.UUID, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.Status != StatusGenerating {
		return ErrNotTransitioned
	}
	rec.Status = StatusCompleted
	rec.ImageID = &imageID
	rec.CompletedAt = &completedAt
	return nil
}

func (f *fakeRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.Status != StatusGenerating {
		return ErrNotTransitioned
	}
	rec.Status = StatusFailed
	rec.Error = errMsg
	rec.CompletedAt = &completedAt
	return nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Record
	for _, rec := range f.records {
		if rec.UserID != nil && *rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func TestCreate_StartsGenerating(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()
	userID := uuid.New()

	id, err := svc.Create(ctx, &userID, "", "a red fox", Config{AspectRatio: "1:1", Model: "nano-banana"})
	require.NoError(t, err)

	rec, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusGenerating, rec.Status)
	assert.Equal(t, "a red fox", rec.Prompt)
	assert.False(t, rec.StartedAt.IsZero())
	assert.Nil(t, rec.CompletedAt)
}

func TestComplete_LinksImage(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	id, err := svc.Create(ctx, nil, "203.0.113.7", "a red fox", Config{AspectRatio: "1:1", Model: "nano-banana"})
	require.NoError(t, err)

	imageID := uuid.New()
	require.NoError(t, svc.Complete(ctx, id, imageID))

	rec, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.ImageID)
	assert.Equal(t, imageID, *rec.ImageID)
	assert.NotNil(t, rec.CompletedAt)
}

func TestFail_StoresError(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	id, err := svc.Create(ctx, nil, "203.0.113.7", "a red fox", Config{AspectRatio: "1:1", Model: "nano-banana"})
	require.NoError(t, err)

	require.NoError(t, svc.Fail(ctx, id, "no image data in response"))

	rec, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "no image data in response", rec.Error)
	assert.NotNil(t, rec.CompletedAt)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	id, err := svc.Create(ctx, nil, "", "a red fox", Config{AspectRatio: "1:1", Model: "nano-banana"})
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, id, uuid.New()))

	err = svc.Complete(ctx, id, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = svc.Fail(ctx, id, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFail_UnknownRecord(t *testing.T) {
	svc := NewService(newFakeRepo())

	err := svc.Fail(context.Background(), uuid.New(), "nope")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
