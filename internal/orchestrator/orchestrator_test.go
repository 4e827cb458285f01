package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-platform/lumina/internal/gemini"
	"github.com/lumina-platform/lumina/internal/generations"
	"github.com/lumina-platform/lumina/internal/images"
	"github.com/lumina-platform/lumina/internal/ratelimit"
)

type fakeRecordRepo struct {
	mu          sync.Mutex
	records     map[uuid.UUID]*generations.Record
	completeErr error
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[uuid.UUID]*generations.Record)}
}

func (f *fakeRecordRepo) Insert(_ context.Context, rec *generations.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*generations.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecordRepo) MarkCompleted(_ context.Context, id, imageID uuid.UUID, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	rec, ok := f.records[id]
	if !ok || rec.Status != generations.StatusGenerating {
		return generations.ErrNotTransitioned
	}
	rec.Status = generations.StatusCompleted
	rec.ImageID = &imageID
	rec.CompletedAt = &completedAt
	return nil
}

func (f *fakeRecordRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.Status != generations.StatusGenerating {
		return generations.ErrNotTransitioned
	}
	rec.Status = generations.StatusFailed
	rec.Error = errMsg
	rec.CompletedAt = &completedAt
	return nil
}

func (f *fakeRecordRepo) ListByUser(_ context.Context, _ uuid.UUID, _, _ int) ([]*generations.Record, error) {
	return nil, nil
}

func (f *fakeRecordRepo) all() []*generations.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*generations.Record
	for _, rec := range f.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out
}

type fakeImageRepo struct {
	mu        sync.Mutex
	images    map[uuid.UUID]*images.Image
	insertErr error
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{images: make(map[uuid.UUID]*images.Image)}
}

func (f *fakeImageRepo) Insert(_ context.Context, img *images.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *img
	f.images[img.ID] = &cp
	return nil
}

func (f *fakeImageRepo) GetByID(_ context.Context, id uuid.UUID) (*images.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.images[id]
	if !ok {
		return nil, nil
	}
	cp := *img
	return &cp, nil
}

func (f *fakeImageRepo) ListByUser(_ context.Context, _ uuid.UUID, _ images.ListFilter) ([]*images.Image, int64, error) {
	return nil, 0, nil
}

func (f *fakeImageRepo) ListPublic(_ context.Context, _, _ int) ([]*images.Image, int64, error) {
	return nil, 0, nil
}

func (f *fakeImageRepo) SetVisibility(_ context.Context, _ uuid.UUID, _ images.Visibility) error {
	return nil
}

func (f *fakeImageRepo) SetFavorite(_ context.Context, _ uuid.UUID, _ bool) error { return nil }
func (f *fakeImageRepo) SetTags(_ context.Context, _ uuid.UUID, _ []string) error { return nil }
func (f *fakeImageRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.images, id)
	return nil
}

func (f *fakeImageRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Store(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return key, nil
}

func (f *fakeBlobs) URL(_ context.Context, key string) (string, time.Time, error) {
	return "https://blobs.test/" + key, time.Now().Add(time.Hour), nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeInvoker struct {
	out *gemini.Output
	err error
}

func (f *fakeInvoker) Invoke(_ context.Context, _ gemini.Request) (*gemini.Output, error) {
	return f.out, f.err
}

type fixture struct {
	orch    *Orchestrator
	records *fakeRecordRepo
	imgs    *fakeImageRepo
	blobs   *fakeBlobs
}

func newFixture(t *testing.T, limit int, invoker Invoker) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	records := newFakeRecordRepo()
	imgs := newFakeImageRepo()
	blobs := newFakeBlobs()

	orch := New(
		ratelimit.New(rdb, limit, 24*time.Hour),
		generations.NewService(records),
		invoker,
		blobs,
		images.NewService(imgs, blobs),
		nil,
		time.Minute,
	)
	return &fixture{orch: orch, records: records, imgs: imgs, blobs: blobs}
}

func goodInvoker() *fakeInvoker {
	return &fakeInvoker{out: &gemini.Output{
		Data:     []byte("png-bytes"),
		MIMEType: "image/png",
		Width:    1024,
		Height:   1024,
	}}
}

func anonymousInput() Input {
	return Input{
		Origin:      "203.0.113.7",
		Prompt:      "a red fox",
		Model:       gemini.ModelNanoBanana,
		AspectRatio: "1:1",
		Visibility:  images.VisibilityPrivate,
	}
}

func TestGenerate_HappyPath(t *testing.T) {
	fx := newFixture(t, 20, goodInvoker())

	result, err := fx.orch.Generate(context.Background(), anonymousInput())
	require.NoError(t, err)

	assert.Equal(t, 1024, result.Width)
	assert.Equal(t, 1024, result.Height)
	assert.NotEmpty(t, result.URL)

	recs := fx.records.all()
	require.Len(t, recs, 1)
	assert.Equal(t, generations.StatusCompleted, recs[0].Status)
	require.NotNil(t, recs[0].ImageID)
	assert.Equal(t, result.ImageID, *recs[0].ImageID)
	assert.NotNil(t, recs[0].CompletedAt)

	assert.Equal(t, 1, fx.imgs.count())
	assert.Equal(t, 1, fx.blobs.count())
}

func TestGenerate_QuotaExhausted_NoRecord(t *testing.T) {
	fx := newFixture(t, 2, goodInvoker())
	ctx := context.Background()
	userID := uuid.New()

	in := anonymousInput()
	in.UserID = &userID

	for i := 0; i < 2; i++ {
		_, err := fx.orch.Generate(ctx, in)
		require.NoError(t, err)
	}

	_, err := fx.orch.Generate(ctx, in)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, ratelimit.KeyspaceUser, rle.Keyspace)
	assert.True(t, rle.RetryAt.After(time.Now()))
	assert.Greater(t, rle.RetryAfter, time.Duration(0))

	// The rejected attempt must leave no trace beyond the two admitted ones.
	assert.Len(t, fx.records.all(), 2)
	assert.Equal(t, 2, fx.imgs.count())
}

func TestGenerate_UserQuotaCheckedBeforeOrigin(t *testing.T) {
	fx := newFixture(t, 1, goodInvoker())
	ctx := context.Background()
	userID := uuid.New()

	in := anonymousInput()
	in.UserID = &userID

	_, err := fx.orch.Generate(ctx, in)
	require.NoError(t, err)

	_, err = fx.orch.Generate(ctx, in)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, ratelimit.KeyspaceUser, rle.Keyspace)
	assert.Equal(t, "user quota exhausted", rle.Reason)
}

func TestGenerate_ModelFailure_OneFailedRecord(t *testing.T) {
	fx := newFixture(t, 20, &fakeInvoker{err: gemini.ErrNoImageData})

	_, err := fx.orch.Generate(context.Background(), anonymousInput())
	require.ErrorIs(t, err, ErrModelInvocation)

	recs := fx.records.all()
	require.Len(t, recs, 1)
	assert.Equal(t, generations.StatusFailed, recs[0].Status)
	assert.Equal(t, gemini.ErrNoImageData.Error(), recs[0].Error)
	assert.Nil(t, recs[0].ImageID)
	assert.NotNil(t, recs[0].CompletedAt)

	assert.Equal(t, 0, fx.imgs.count())
	assert.Equal(t, 0, fx.blobs.count())
}

func TestGenerate_PersistenceFailure_CompensatesBlob(t *testing.T) {
	fx := newFixture(t, 20, goodInvoker())
	fx.imgs.insertErr = errors.New("connection refused")

	_, err := fx.orch.Generate(context.Background(), anonymousInput())
	require.Error(t, err)

	recs := fx.records.all()
	require.Len(t, recs, 1)
	assert.Equal(t, generations.StatusFailed, recs[0].Status)

	// The stored blob must not outlive the failed metadata insert.
	assert.Equal(t, 0, fx.blobs.count())
}

func TestGenerate_CompleteFailure_RollsBackImage(t *testing.T) {
	fx := newFixture(t, 20, goodInvoker())
	fx.records.completeErr = errors.New("connection reset")

	_, err := fx.orch.Generate(context.Background(), anonymousInput())
	require.Error(t, err)

	recs := fx.records.all()
	require.Len(t, recs, 1)
	assert.Equal(t, generations.StatusFailed, recs[0].Status)
	assert.Nil(t, recs[0].ImageID)

	// An image row exists only for records that reached completed.
	assert.Equal(t, 0, fx.imgs.count())
	assert.Equal(t, 0, fx.blobs.count())
}

func TestGenerate_QuotaUnavailable_FailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	records := newFakeRecordRepo()
	blobs := newFakeBlobs()
	orch := New(
		ratelimit.New(rdb, 20, 24*time.Hour),
		generations.NewService(records),
		goodInvoker(),
		blobs,
		images.NewService(newFakeImageRepo(), blobs),
		nil,
		time.Minute,
	)

	mr.Close()

	_, err := orch.Generate(context.Background(), anonymousInput())
	require.ErrorIs(t, err, ErrQuotaUnavailable)
	assert.Empty(t, records.all())
}
