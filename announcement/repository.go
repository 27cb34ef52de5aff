package announcement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("announcement: not found")

type Repository interface {
	ListActive(ctx context.Context, limit int) ([]Announcement, error)
	Create(ctx context.Context, createdBy string, req CreateRequest) (Announcement, error)
	Deactivate(ctx context.Context, id string) error
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, title, body, is_active, created_by, created_at`

func (r *PGRepository) ListActive(ctx context.Context, limit int) ([]Announcement, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+`
		FROM announcements
		WHERE is_active
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("announcement: list: %w", err)
	}
	defer rows.Close()

	out := make([]Announcement, 0, 4)
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("announcement: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("announcement: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Create(ctx context.Context, createdBy string, req CreateRequest) (Announcement, error) {
	a, err := scanAnnouncement(r.pool.QueryRow(ctx, `
		INSERT INTO announcements (title, body, created_by)
		VALUES ($1, $2, $3)
		RETURNING `+columns,
		req.Title, req.Body, createdBy,
	))
	if err != nil {
		return Announcement{}, fmt.Errorf("announcement: create: %w", err)
	}
	return a, nil
}

func (r *PGRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE announcements SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("announcement: deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAnnouncement(row pgx.Row) (Announcement, error) {
	var a Announcement
	err := row.Scan(&a.ID, &a.Title, &a.Body, &a.IsActive, &a.CreatedBy, &a.CreatedAt)
	return a, err
}
