// Package storage persists generated image bytes in S3-compatible object
// storage. Image metadata lives in Postgres; this package only handles blobs.
package storage

import (
	"context"
	"time"
)

// BlobStore is the contract the orchestrator and image service depend on.
type BlobStore interface {
	// Store writes the blob and returns the object key it was stored under.
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// URL returns a presigned, time-limited GET URL for the object.
	URL(ctx context.Context, key string) (string, time.Time, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}
