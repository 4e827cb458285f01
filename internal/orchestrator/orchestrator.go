// Package orchestrator drives one image generation end to end: quota consume,
// record creation, model invocation, blob and metadata persistence.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumina-platform/lumina/internal/events"
	"github.com/lumina-platform/lumina/internal/gemini"
	"github.com/lumina-platform/lumina/internal/generations"
	"github.com/lumina-platform/lumina/internal/images"
	"github.com/lumina-platform/lumina/internal/metrics"
	"github.com/lumina-platform/lumina/internal/ratelimit"
	"github.com/lumina-platform/lumina/internal/storage"
)

// Invoker is the model adapter contract.
type Invoker interface {
	Invoke(ctx context.Context, req gemini.Request) (*gemini.Output, error)
}

// Input is one validated generation request with its resolved identity.
type Input struct {
	UserID      *uuid.UUID
	Origin      string
	Prompt      string
	Model       gemini.ModelKey
	AspectRatio string
	Resolution  string
	Style       string
	Visibility  images.Visibility
}

// Result is returned for a completed generation.
type Result struct {
	RecordID uuid.UUID `json:"record_id"`
	ImageID  uuid.UUID `json:"image_id"`
	URL      string    `json:"url"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
}

type Orchestrator struct {
	limiter   *ratelimit.Limiter
	records   *generations.Service
	invoker   Invoker
	blobs     storage.BlobStore
	images    *images.Service
	publisher *events.Publisher
	timeout   time.Duration
}

func New(
	limiter *ratelimit.Limiter,
	records *generations.Service,
	invoker Invoker,
	blobs storage.BlobStore,
	imageSvc *images.Service,
	publisher *events.Publisher,
	timeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		limiter:   limiter,
		records:   records,
		invoker:   invoker,
		blobs:     blobs,
		images:    imageSvc,
		publisher: publisher,
		timeout:   timeout,
	}
}

// Limiter exposes the quota limiter for read-only status queries.
func (o *Orchestrator) Limiter() *ratelimit.Limiter {
	return o.limiter
}

// quotaKeys returns the ordered (keyspace, key) pairs for this caller. The
// user key comes first so an authenticated caller exhausts their personal
// quota before touching the shared origin counter.
func quotaKeys(in Input) [][2]string {
	var pairs [][2]string
	if in.UserID != nil {
		pairs = append(pairs, [2]string{string(ratelimit.KeyspaceUser), in.UserID.String()})
	}
	if in.Origin != "" {
		pairs = append(pairs, [2]string{string(ratelimit.KeyspaceOrigin), in.Origin})
	}
	return pairs
}

// Generate runs the full flow. Exactly one terminal state is written for
// every record it creates; a quota rejection creates no record at all.
func (o *Orchestrator) Generate(ctx context.Context, in Input) (*Result, error) {
	if err := o.consumeQuota(ctx, in); err != nil {
		return nil, err
	}

	recordID, err := o.records.Create(ctx, in.UserID, in.Origin, in.Prompt, generations.Config{
		AspectRatio: in.AspectRatio,
		Model:       string(in.Model),
		Resolution:  in.Resolution,
		Style:       in.Style,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generation record: %w", err)
	}

	started := time.Now()

	// The finalizer guarantees a terminal write even on paths that return
	// before reaching Complete. Paths that did finalize set done.
	done := false
	failMsg := "generation aborted"
	defer func() {
		if done {
			return
		}
		// The request context may already be cancelled; the terminal
		// write must still land.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.records.Fail(fctx, recordID, failMsg); err != nil {
			slog.Error("finalizing generation record", "record_id", recordID, "error", err)
		}
		o.reportOutcome(fctx, in, recordID, events.TypeGenerationFailed, started, failMsg)
	}()

	ictx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	out, err := o.invoker.Invoke(ictx, gemini.Request{
		Prompt:      in.Prompt,
		Model:       in.Model,
		AspectRatio: in.AspectRatio,
		Resolution:  in.Resolution,
		Style:       in.Style,
	})
	if err != nil {
		failMsg = err.Error()
		return nil, fmt.Errorf("%w: %w", ErrModelInvocation, err)
	}

	storageKey := blobKey(recordID, out.MIMEType)
	if _, err := o.blobs.Store(ctx, storageKey, out.Data, out.MIMEType); err != nil {
		failMsg = "storing image failed"
		return nil, fmt.Errorf("storing image blob: %w", err)
	}

	img := &images.Image{
		ID:          uuid.New(),
		UserID:      in.UserID,
		Origin:      in.Origin,
		Visibility:  in.Visibility,
		Prompt:      in.Prompt,
		AspectRatio: in.AspectRatio,
		Resolution:  in.Resolution,
		StorageKey:  storageKey,
		Width:       out.Width,
		Height:      out.Height,
		Model:       string(in.Model),
		Style:       in.Style,
	}
	if err := o.images.Create(ctx, img); err != nil {
		failMsg = "persisting image failed"
		o.compensateBlob(ctx, storageKey)
		return nil, fmt.Errorf("persisting image metadata: %w", err)
	}

	if err := o.records.Complete(ctx, recordID, img.ID); err != nil {
		failMsg = "completing record failed"
		// The image row must not outlive a record that never completed, so
		// both the row and the blob are rolled back.
		o.discardImage(ctx, img.ID)
		o.compensateBlob(ctx, storageKey)
		return nil, fmt.Errorf("completing generation record: %w", err)
	}
	done = true

	metrics.GenerationsTotal.WithLabelValues(string(generations.StatusCompleted)).Inc()
	metrics.GenerationDuration.Observe(time.Since(started).Seconds())
	o.reportOutcome(ctx, in, recordID, events.TypeGenerationCompleted, started, "")

	url, _, err := o.blobs.URL(ctx, storageKey)
	if err != nil {
		slog.Warn("presigning fresh image", "record_id", recordID, "error", err)
	}

	slog.Info("generation completed",
		"record_id", recordID,
		"image_id", img.ID,
		"model", in.Model,
		"duration", time.Since(started).Round(time.Millisecond),
	)

	return &Result{
		RecordID: recordID,
		ImageID:  img.ID,
		URL:      url,
		Width:    out.Width,
		Height:   out.Height,
	}, nil
}

// consumeQuota takes one slot from every applicable window, user key first.
// The first denial short-circuits; earlier consumes are intentionally not
// rolled back, matching fixed-window accounting.
func (o *Orchestrator) consumeQuota(ctx context.Context, in Input) error {
	for _, pair := range quotaKeys(in) {
		ks := ratelimit.Keyspace(pair[0])
		res, err := o.limiter.Consume(ctx, ks, pair[1])
		if err != nil {
			slog.Error("quota consume failed", "keyspace", ks, "error", err)
			return fmt.Errorf("%w: %w", ErrQuotaUnavailable, err)
		}
		if !res.OK {
			metrics.GenerationsTotal.WithLabelValues(string(generations.StatusRateLimited)).Inc()
			metrics.RateLimitRejectionsTotal.WithLabelValues(string(ks)).Inc()

			rle := &RateLimitError{
				Keyspace:   ks,
				Reason:     rejectionReason(ks),
				RetryAfter: res.RetryAfter,
				RetryAt:    time.Now().Add(res.RetryAfter),
			}
			o.publisher.PublishAuditEvent(ctx, events.AuditEvent{
				OwnerUserID:  in.UserID,
				EventType:    events.TypeGenerationRateLimited,
				Severity:     "warn",
				ResourceType: "generation",
				Details:      rle.Error(),
				Origin:       in.Origin,
				Timestamp:    time.Now().UTC(),
			})
			return rle
		}
	}
	return nil
}

func (o *Orchestrator) reportOutcome(ctx context.Context, in Input, recordID uuid.UUID, eventType string, started time.Time, detail string) {
	if eventType == events.TypeGenerationFailed {
		metrics.GenerationsTotal.WithLabelValues(string(generations.StatusFailed)).Inc()
	}

	duration := time.Since(started).Seconds()
	o.publisher.PublishGenerationEvent(ctx, events.GenerationEvent{
		RecordID:    recordID,
		OwnerUserID: in.UserID,
		Origin:      in.Origin,
		EventType:   eventType,
		Model:       string(in.Model),
		Duration:    duration,
		Timestamp:   time.Now().UTC(),
	})

	severity := "info"
	if eventType == events.TypeGenerationFailed {
		severity = "error"
	}
	if detail == "" {
		detail = fmt.Sprintf("generation finished in %.1fs", duration)
	}
	o.publisher.PublishAuditEvent(ctx, events.AuditEvent{
		OwnerUserID:  in.UserID,
		EventType:    eventType,
		Severity:     severity,
		ResourceType: "generation",
		ResourceID:   &recordID,
		Details:      detail,
		Origin:       in.Origin,
		Timestamp:    time.Now().UTC(),
	})
}

// discardImage rolls back a metadata row inserted for a record that did not
// reach the completed state.
func (o *Orchestrator) discardImage(ctx context.Context, imageID uuid.UUID) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.images.Discard(dctx, imageID); err != nil {
		slog.Error("removing orphaned image row", "image_id", imageID, "error", err)
	}
}

// compensateBlob removes a stored blob after a later persistence step failed,
// so no orphaned object outlives its metadata.
func (o *Orchestrator) compensateBlob(ctx context.Context, key string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.blobs.Delete(dctx, key); err != nil {
		slog.Error("removing orphaned blob", "key", key, "error", err)
	}
}

func rejectionReason(ks ratelimit.Keyspace) string {
	if ks == ratelimit.KeyspaceUser {
		return "user quota exhausted"
	}
	return "origin quota exhausted"
}

func blobKey(recordID uuid.UUID, mimeType string) string {
	ext := "png"
	switch mimeType {
	case "image/jpeg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	return fmt.Sprintf("generations/%s.%s", recordID, ext)
}
