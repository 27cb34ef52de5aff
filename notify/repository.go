package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAnnouncementNotFound signals that the announcement does not exist.
	ErrAnnouncementNotFound = errors.New("notify: announcement not found")
	// ErrNotFound signals that the notification does not exist for the user.
	ErrNotFound = errors.New("notify: notification not found")
)

// Repository handles notification persistence.
type Repository interface {
	FanOut(ctx context.Context, announcementID string) (FanOutResult, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FanOut inserts one notification row per profile for the announcement.
// Count is the number of rows added by this call. Zero profiles is not an
// error.
func (r *PGRepository) FanOut(ctx context.Context, announcementID string) (FanOutResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return FanOutResult{}, fmt.Errorf("notify: begin fan out: %w", err)
	}
	defer tx.Rollback(ctx)

	res := FanOutResult{AnnouncementID: announcementID}
	var body string
	const announcementSQL = `SELECT title, body FROM announcements WHERE id = $1`
	if err := tx.QueryRow(ctx, announcementSQL, announcementID).Scan(&res.Title, &body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FanOutResult{}, ErrAnnouncementNotFound
		}
		return FanOutResult{}, fmt.Errorf("notify: load announcement: %w", err)
	}

	// Profiles already notified for this announcement are skipped, so a
	// re-send only reaches users who signed up since the last one.
	const fanOutSQL = `
		INSERT INTO notifications (user_id, announcement_id, title, message)
		SELECT p.id, $1::uuid, $2::text, $3::text
		FROM profiles p
		ORDER BY p.created_at
		ON CONFLICT (announcement_id, user_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, fanOutSQL, announcementID, res.Title, body)
	if err != nil {
		return FanOutResult{}, fmt.Errorf("notify: insert notifications: %w", err)
	}
	res.Count = int(tag.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return FanOutResult{}, fmt.Errorf("notify: commit fan out: %w", err)
	}
	return res, nil
}

func (r *PGRepository) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const selectSQL = `
		SELECT id, user_id, announcement_id, title, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, selectSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.AnnouncementID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate notifications: %w", err)
	}
	return out, nil
}

func (r *PGRepository) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
