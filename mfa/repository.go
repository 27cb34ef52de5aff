package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProfileNotFound signals that the user has no profile row.
var ErrProfileNotFound = errors.New("mfa: profile not found")

// AuditEnabled is the audit_logs action written when MFA is switched on.
const AuditEnabled = "mfa.enabled"

// Repository persists encrypted MFA secrets on profiles.
type Repository interface {
	Enable(ctx context.Context, userID, ciphertext string) error
	GetSecret(ctx context.Context, userID string) (StoredSecret, error)
	ReplaceSecret(ctx context.Context, userID, ciphertext string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Enable stores the secret, flips mfa_enabled and records an audit entry in
// one transaction.
func (r *PGRepository) Enable(ctx context.Context, userID, ciphertext string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("mfa: begin enable: %w", err)
	}
	defer tx.Rollback(ctx)

	const updateSQL = `
		UPDATE profiles
		SET mfa_secret = $2, mfa_enabled = true, updated_at = now()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, updateSQL, userID, ciphertext)
	if err != nil {
		return fmt.Errorf("mfa: store secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	details, _ := json.Marshal(map[string]any{"method": "totp"})
	const auditSQL = `
		INSERT INTO audit_logs (user_id, action, details)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, auditSQL, userID, AuditEnabled, details); err != nil {
		return fmt.Errorf("mfa: write audit log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("mfa: commit enable: %w", err)
	}
	return nil
}

func (r *PGRepository) GetSecret(ctx context.Context, userID string) (StoredSecret, error) {
	const selectSQL = `
		SELECT COALESCE(mfa_secret, ''), mfa_enabled
		FROM profiles
		WHERE id = $1
	`
	var s StoredSecret
	if err := r.pool.QueryRow(ctx, selectSQL, userID).Scan(&s.Ciphertext, &s.Enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredSecret{}, ErrProfileNotFound
		}
		return StoredSecret{}, fmt.Errorf("mfa: get secret: %w", err)
	}
	return s, nil
}

// ReplaceSecret rewrites the ciphertext, used after a key rotation.
func (r *PGRepository) ReplaceSecret(ctx context.Context, userID, ciphertext string) error {
	const updateSQL = `
		UPDATE profiles
		SET mfa_secret = $2, updated_at = now()
		WHERE id = $1 AND mfa_enabled
	`
	tag, err := r.pool.Exec(ctx, updateSQL, userID, ciphertext)
	if err != nil {
		return fmt.Errorf("mfa: replace secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
