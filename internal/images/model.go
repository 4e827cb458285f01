package images

import (
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Image is the persisted metadata of one generated picture. The bytes live in
// blob storage under StorageKey.
type Image struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Origin      string     `json:"-"`
	Visibility  Visibility `json:"visibility"`
	Prompt      string     `json:"prompt"`
	AspectRatio string     `json:"aspect_ratio"`
	Resolution  string     `json:"resolution,omitempty"`
	StorageKey  string     `json:"-"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Model       string     `json:"model"`
	Style       string     `json:"style,omitempty"`
	IsFavorite  bool       `json:"is_favorite"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`

	// URL is a presigned link filled in at read time, never stored.
	URL string `json:"url,omitempty"`
}

// ListFilter narrows an owner's image listing.
type ListFilter struct {
	FavoritesOnly bool
	Limit         int
	Offset        int
}
