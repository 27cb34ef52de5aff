package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("address: not found")

// Repository handles address persistence. Every query is scoped to the
// owning user.
type Repository interface {
	List(ctx context.Context, userID string) ([]Address, error)
	Create(ctx context.Context, userID string, req CreateRequest) (Address, error)
	Delete(ctx context.Context, userID, id string) error
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, user_id, label, line1, line2, city, postcode, country, is_default, created_at`

func (r *PGRepository) List(ctx context.Context, userID string) ([]Address, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+`
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("address: list: %w", err)
	}
	defer rows.Close()

	out := make([]Address, 0, 4)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("address: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("address: iterate: %w", err)
	}
	return out, nil
}

// Create inserts the address. A new default clears the previous one in the
// same transaction.
func (r *PGRepository) Create(ctx context.Context, userID string, req CreateRequest) (Address, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Address{}, fmt.Errorf("address: begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	if req.IsDefault {
		// Serializes concurrent default changes for the same user.
		if _, err := tx.Exec(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
			return Address{}, fmt.Errorf("address: lock owner: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default = false WHERE user_id = $1 AND is_default`, userID); err != nil {
			return Address{}, fmt.Errorf("address: clear default: %w", err)
		}
	}

	a, err := scanAddress(tx.QueryRow(ctx, `
		INSERT INTO addresses (user_id, label, line1, line2, city, postcode, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+columns,
		userID, req.Label, req.Line1, req.Line2, req.City, req.Postcode, req.Country, req.IsDefault,
	))
	if err != nil {
		return Address{}, fmt.Errorf("address: create: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Address{}, fmt.Errorf("address: commit create: %w", err)
	}
	return a, nil
}

func (r *PGRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("address: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Line1, &a.Line2, &a.City, &a.Postcode, &a.Country, &a.IsDefault, &a.CreatedAt)
	return a, err
}
