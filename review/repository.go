package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("review: not found")

type Repository interface {
	ListApproved(ctx context.Context, limit int) ([]Review, error)
	Create(ctx context.Context, userID *string, req CreateRequest) (Review, error)
	Approve(ctx context.Context, id string) (Review, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, user_id, author_name, rating, comment, approved, created_at`

func (r *PGRepository) ListApproved(ctx context.Context, limit int) ([]Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+`
		FROM reviews
		WHERE approved
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("review: list: %w", err)
	}
	defer rows.Close()

	out := make([]Review, 0, limit)
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("review: scan: %w", err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Create(ctx context.Context, userID *string, req CreateRequest) (Review, error) {
	rev, err := scanReview(r.pool.QueryRow(ctx, `
		INSERT INTO reviews (user_id, author_name, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING `+columns,
		userID, req.AuthorName, req.Rating, req.Comment,
	))
	if err != nil {
		return Review{}, fmt.Errorf("review: create: %w", err)
	}
	return rev, nil
}

func (r *PGRepository) Approve(ctx context.Context, id string) (Review, error) {
	rev, err := scanReview(r.pool.QueryRow(ctx, `
		UPDATE reviews SET approved = true
		WHERE id = $1
		RETURNING `+columns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, ErrNotFound
		}
		return Review{}, fmt.Errorf("review: approve: %w", err)
	}
	return rev, nil
}

func scanReview(row pgx.Row) (Review, error) {
	var rev Review
	err := row.Scan(&rev.ID, &rev.UserID, &rev.AuthorName, &rev.Rating, &rev.Comment, &rev.Approved, &rev.CreatedAt)
	return rev, err
}
