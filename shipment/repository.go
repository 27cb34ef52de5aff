package shipment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("shipment: not found")
	ErrDuplicateTracking = errors.New("shipment: tracking number already exists")
	ErrBadStatus         = errors.New("shipment: invalid status transition")
)

// Repository persists shipments.
type Repository interface {
	Insert(ctx context.Context, s Shipment) (Shipment, error)
	GetByTracking(ctx context.Context, trackingNumber string) (Shipment, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Shipment, error)
	UpdateStatus(ctx context.Context, id string, from []Status, to Status) (Shipment, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const shipmentColumns = `id, tracking_number, user_id, status, origin, destination, metadata, created_at, updated_at`

func (r *PGRepository) Insert(ctx context.Context, s Shipment) (Shipment, error) {
	const insertSQL = `
		INSERT INTO shipments (id, tracking_number, user_id, status, origin, destination, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + shipmentColumns

	out, err := scanShipment(r.pool.QueryRow(ctx, insertSQL,
		s.ID, s.TrackingNumber, s.UserID, s.Status, s.Origin, s.Destination, s.Metadata, s.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "shipments_tracking_number_key" {
			return Shipment{}, ErrDuplicateTracking
		}
		return Shipment{}, fmt.Errorf("shipment: insert: %w", err)
	}
	return out, nil
}

func (r *PGRepository) GetByTracking(ctx context.Context, trackingNumber string) (Shipment, error) {
	const selectSQL = `SELECT ` + shipmentColumns + ` FROM shipments WHERE tracking_number = $1`

	out, err := scanShipment(r.pool.QueryRow(ctx, selectSQL, trackingNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, ErrNotFound
		}
		return Shipment{}, fmt.Errorf("shipment: get by tracking: %w", err)
	}
	return out, nil
}

func (r *PGRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Shipment, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	const selectSQL = `
		SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, selectSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("shipment: list: %w", err)
	}
	defer rows.Close()

	out := make([]Shipment, 0, 8)
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("shipment: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("shipment: iterate: %w", err)
	}
	return out, nil
}

// UpdateStatus moves a shipment to status to when its current status is one
// of from.
func (r *PGRepository) UpdateStatus(ctx context.Context, id string, from []Status, to Status) (Shipment, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	const updateSQL = `
		UPDATE shipments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + shipmentColumns

	out, err := scanShipment(r.pool.QueryRow(ctx, updateSQL, id, to, allowed))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Shipment{}, fmt.Errorf("shipment: update status: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shipments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Shipment{}, fmt.Errorf("shipment: update status fetch: %w", err)
	}
	if !exists {
		return Shipment{}, ErrNotFound
	}
	return Shipment{}, ErrBadStatus
}

func scanShipment(row pgx.Row) (Shipment, error) {
	var s Shipment
	err := row.Scan(
		&s.ID,
		&s.TrackingNumber,
		&s.UserID,
		&s.Status,
		&s.Origin,
		&s.Destination,
		&s.Metadata,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return Shipment{}, err
	}
	return s, nil
}
