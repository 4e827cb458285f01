package generations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotTransitioned reports that a conditional status update matched no row:
// either the record does not exist or it already left the generating state.
var ErrNotTransitioned = errors.New("record not in generating state")

type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	MarkCompleted(ctx context.Context, id, imageID uuid.UUID, completedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, completedAt time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Record, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Insert(ctx context.Context, rec *Record) error {
	cfgJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("marshaling generation config: %w", err)
	}

	query := `
		INSERT INTO generations (id, user_id, origin, status, prompt, config, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, nullable(rec.Origin), rec.Status, rec.Prompt, cfgJSON, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("inserting generation record: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `
		SELECT id, user_id, origin, status, prompt, config, image_id, error, started_at, completed_at
		FROM generations
		WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying generation record: %w", err)
	}
	return rec, nil
}

// MarkCompleted transitions generating → completed. The status predicate in
// the WHERE clause is the transition guard: a second terminal write matches
// zero rows.
func (r *postgresRepository) MarkCompleted(ctx context.Context, id, imageID uuid.UUID, completedAt time.Time) error {
	query := `
		UPDATE generations
		SET status = $2, image_id = $3, completed_at = $4
		WHERE id = $1 AND status = $5`

	result, err := r.pool.Exec(ctx, query, id, StatusCompleted, imageID, completedAt, StatusGenerating)
	if err != nil {
		return fmt.Errorf("completing generation record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotTransitioned
	}
	return nil
}

// MarkFailed transitions generating → failed under the same guard.
func (r *postgresRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, completedAt time.Time) error {
	query := `
		UPDATE generations
		SET status = $2, error = $3, completed_at = $4
		WHERE id = $1 AND status = $5`

	result, err := r.pool.Exec(ctx, query, id, StatusFailed, errMsg, completedAt, StatusGenerating)
	if err != nil {
		return fmt.Errorf("failing generation record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotTransitioned
	}
	return nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Record, error) {
	query := `
		SELECT id, user_id, origin, status, prompt, config, image_id, error, started_at, completed_at
		FROM generations
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing generation records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning generation record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	rec := &Record{}
	var cfgJSON []byte
	var origin, errMsg *string

	err := row.Scan(
		&rec.ID, &rec.UserID, &origin, &rec.Status, &rec.Prompt,
		&cfgJSON, &rec.ImageID, &errMsg, &rec.StartedAt, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}

	if origin != nil {
		rec.Origin = *origin
	}
	if errMsg != nil {
		rec.Error = *errMsg
	}
	if err := json.Unmarshal(cfgJSON, &rec.Config); err != nil {
		return nil, fmt.Errorf("unmarshaling generation config: %w", err)
	}
	return rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
