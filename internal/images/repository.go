package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Insert(ctx context.Context, img *Image) error
	GetByID(ctx context.Context, id uuid.UUID) (*Image, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Image, int64, error)
	ListPublic(ctx context.Context, limit, offset int) ([]*Image, int64, error)
	SetVisibility(ctx context.Context, id uuid.UUID, v Visibility) error
	SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) error
	SetTags(ctx context.Context, id uuid.UUID, tags []string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

const imageColumns = `id, user_id, origin, visibility, prompt, aspect_ratio,
	resolution, storage_key, width, height, model, style, is_favorite, tags, created_at`

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Insert(ctx context.Context, img *Image) error {
	query := `
		INSERT INTO images (id, user_id, origin, visibility, prompt, aspect_ratio,
			resolution, storage_key, width, height, model, style, is_favorite, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		img.ID, img.UserID, nullable(img.Origin), img.Visibility, img.Prompt,
		img.AspectRatio, nullable(img.Resolution), img.StorageKey, img.Width,
		img.Height, img.Model, nullable(img.Style), img.IsFavorite, img.Tags,
		img.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting image: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	img, err := scanImage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying image by id: %w", err)
	}
	return img, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Image, int64, error) {
	where := `WHERE user_id = $1`
	if filter.FavoritesOnly {
		where += ` AND is_favorite = true`
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM images `+where, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting user images: %w", err)
	}

	query := `SELECT ` + imageColumns + ` FROM images ` + where +
		` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing user images: %w", err)
	}
	defer rows.Close()

	out, err := collectImages(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *postgresRepository) ListPublic(ctx context.Context, limit, offset int) ([]*Image, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM images WHERE visibility = 'public'`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting public images: %w", err)
	}

	query := `SELECT ` + imageColumns + ` FROM images
		WHERE visibility = 'public' ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing public images: %w", err)
	}
	defer rows.Close()

	out, err := collectImages(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *postgresRepository) SetVisibility(ctx context.Context, id uuid.UUID, v Visibility) error {
	_, err := r.pool.Exec(ctx, `UPDATE images SET visibility = $2 WHERE id = $1`, id, v)
	if err != nil {
		return fmt.Errorf("updating image visibility: %w", err)
	}
	return nil
}

func (r *postgresRepository) SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE images SET is_favorite = $2 WHERE id = $1`, id, favorite)
	if err != nil {
		return fmt.Errorf("updating image favorite flag: %w", err)
	}
	return nil
}

func (r *postgresRepository) SetTags(ctx context.Context, id uuid.UUID, tags []string) error {
	_, err := r.pool.Exec(ctx, `UPDATE images SET tags = $2 WHERE id = $1`, id, tags)
	if err != nil {
		return fmt.Errorf("updating image tags: %w", err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*Image, error) {
	img := &Image{}
	var origin, resolution, style *string
	err := row.Scan(
		&img.ID, &img.UserID, &origin, &img.Visibility, &img.Prompt,
		&img.AspectRatio, &resolution, &img.StorageKey, &img.Width,
		&img.Height, &img.Model, &style, &img.IsFavorite, &img.Tags,
		&img.CreatedAt)
	if err != nil {
		return nil, err
	}
	if origin != nil {
		img.Origin = *origin
	}
	if resolution != nil {
		img.Resolution = *resolution
	}
	if style != nil {
		img.Style = *style
	}
	return img, nil
}

func collectImages(rows pgx.Rows) ([]*Image, error) {
	var out []*Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning image row: %w", err)
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating image rows: %w", err)
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
