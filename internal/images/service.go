package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumina-platform/lumina/internal/storage"
)

var (
	ErrNotFound  = errors.New("image not found")
	ErrForbidden = errors.New("image access denied")
)

// Service enforces ownership and visibility rules over image metadata and
// keeps the blob store consistent on delete.
type Service struct {
	repo  Repository
	blobs storage.BlobStore
}

func NewService(repo Repository, blobs storage.BlobStore) *Service {
	return &Service{repo: repo, blobs: blobs}
}

// Create persists metadata for a freshly generated image. The blob must
// already be stored under img.StorageKey.
func (s *Service) Create(ctx context.Context, img *Image) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	if img.Visibility == "" {
		img.Visibility = VisibilityPrivate
	}
	if img.Tags == nil {
		img.Tags = []string{}
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}
	return s.repo.Insert(ctx, img)
}

// Get returns an image the viewer is allowed to see. Private images are only
// visible to their owner; a forbidden image reads as not found to avoid
// leaking its existence.
func (s *Service) Get(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*Image, error) {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNotFound
	}
	if img.Visibility != VisibilityPublic && !isOwner(img, viewerID) {
		return nil, ErrNotFound
	}
	return s.withURL(ctx, img), nil
}

// ListByUser returns the owner's images, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Image, int64, error) {
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	imgs, total, err := s.repo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}
	return s.withURLs(ctx, imgs), total, nil
}

// ListPublic returns the public gallery, newest first.
func (s *Service) ListPublic(ctx context.Context, limit, offset int) ([]*Image, int64, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	imgs, total, err := s.repo.ListPublic(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return s.withURLs(ctx, imgs), total, nil
}

// ToggleVisibility flips public/private. Owner only.
func (s *Service) ToggleVisibility(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (Visibility, error) {
	img, err := s.requireOwned(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	next := VisibilityPublic
	if img.Visibility == VisibilityPublic {
		next = VisibilityPrivate
	}
	if err := s.repo.SetVisibility(ctx, id, next); err != nil {
		return "", err
	}
	return next, nil
}

// ToggleFavorite flips the favorite flag. Owner only.
func (s *Service) ToggleFavorite(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (bool, error) {
	img, err := s.requireOwned(ctx, id, ownerID)
	if err != nil {
		return false, err
	}
	next := !img.IsFavorite
	if err := s.repo.SetFavorite(ctx, id, next); err != nil {
		return false, err
	}
	return next, nil
}

// UpdateTags replaces the tag list. Owner only.
func (s *Service) UpdateTags(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, tags []string) error {
	if _, err := s.requireOwned(ctx, id, ownerID); err != nil {
		return err
	}
	if tags == nil {
		tags = []string{}
	}
	return s.repo.SetTags(ctx, id, tags)
}

// Delete removes the blob first, then the metadata row. Owner only. A row
// without a blob would serve broken URLs, so the blob goes first.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	img, err := s.requireOwned(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, img.StorageKey); err != nil {
		return fmt.Errorf("deleting image blob: %w", err)
	}
	return s.repo.Delete(ctx, id)
}

// Discard removes the metadata row of an image whose generation never
// reached a completed record. The blob is compensated separately by the
// caller; no ownership check applies because the row was never visible.
func (s *Service) Discard(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) requireOwned(ctx context.Context, id, ownerID uuid.UUID) (*Image, error) {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNotFound
	}
	if !isOwner(img, &ownerID) {
		return nil, ErrForbidden
	}
	return img, nil
}

func (s *Service) withURL(ctx context.Context, img *Image) *Image {
	url, _, err := s.blobs.URL(ctx, img.StorageKey)
	if err != nil {
		slog.Warn("presigning image url", "image_id", img.ID, "error", err)
		return img
	}
	img.URL = url
	return img
}

func (s *Service) withURLs(ctx context.Context, imgs []*Image) []*Image {
	for _, img := range imgs {
		s.withURL(ctx, img)
	}
	return imgs
}

func isOwner(img *Image, viewerID *uuid.UUID) bool {
	return img.UserID != nil && viewerID != nil && *img.UserID == *viewerID
}

func clampLimit(limit int) int {
	if limit < 1 || limit > 100 {
		return 20
	}
	return limit
}
