package ticket

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("ticket: not found")
	ErrForbidden = errors.New("ticket: forbidden")
	ErrBadStatus = errors.New("ticket: invalid status transition")
)

type Repository interface {
	List(ctx context.Context, userID string, all bool) ([]Ticket, error)
	Create(ctx context.Context, userID string, req CreateRequest) (Ticket, error)
	Resolve(ctx context.Context, userID, ticketID string, admin bool) (Ticket, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, user_id, subject, message, status, created_at, updated_at, resolved_at`

// List returns the user's tickets, or every ticket when all is set.
func (r *PGRepository) List(ctx context.Context, userID string, all bool) ([]Ticket, error) {
	query := `SELECT ` + columns + ` FROM tickets`
	var args []any
	if !all {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket: list: %w", err)
	}
	defer rows.Close()

	out := make([]Ticket, 0, 8)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ticket: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Create(ctx context.Context, userID string, req CreateRequest) (Ticket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx, `
		INSERT INTO tickets (user_id, subject, message)
		VALUES ($1, $2, $3)
		RETURNING `+columns,
		userID, req.Subject, req.Message,
	))
	if err != nil {
		return Ticket{}, fmt.Errorf("ticket: create: %w", err)
	}
	return t, nil
}

// Resolve closes an open ticket owned by userID, or any open ticket for an
// admin.
func (r *PGRepository) Resolve(ctx context.Context, userID, ticketID string, admin bool) (Ticket, error) {
	const query = `
		UPDATE tickets
		SET status = 'resolved', resolved_at = now(), updated_at = now()
		WHERE id = $1
		  AND ($2 OR user_id = $3)
		  AND status <> 'resolved'
		RETURNING ` + columns

	t, err := scanTicket(r.pool.QueryRow(ctx, query, ticketID, admin, userID))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, fmt.Errorf("ticket: resolve: %w", err)
	}

	var (
		owner  string
		status Status
	)
	if err := r.pool.QueryRow(ctx, `SELECT user_id, status FROM tickets WHERE id = $1`, ticketID).Scan(&owner, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, fmt.Errorf("ticket: resolve fetch: %w", err)
	}
	if !admin && owner != userID {
		return Ticket{}, ErrForbidden
	}
	if status == StatusResolved {
		return Ticket{}, ErrBadStatus
	}
	return Ticket{}, ErrForbidden
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt)
	return t, err
}
