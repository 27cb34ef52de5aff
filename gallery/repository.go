package gallery

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides access to gallery images.
type Repository interface {
	List(ctx context.Context, category string, limit int) ([]Image, error)
	Create(ctx context.Context, req CreateRequest) (Image, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List fetches up to limit images ordered for display, optionally filtered
// by category.
func (r *PGRepository) List(ctx context.Context, category string, limit int) ([]Image, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `
		SELECT id, url, caption, category, sort_order, created_at
		FROM gallery_images
	`
	args := []any{limit}
	if category != "" {
		query += ` WHERE category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY sort_order ASC, created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("gallery: list: %w", err)
	}
	defer rows.Close()

	images := make([]Image, 0, limit)
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.URL, &img.Caption, &img.Category, &img.SortOrder, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("gallery: scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gallery: iterate images: %w", err)
	}
	return images, nil
}

func (r *PGRepository) Create(ctx context.Context, req CreateRequest) (Image, error) {
	const query = `
		INSERT INTO gallery_images (url, caption, category, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id, url, caption, category, sort_order, created_at
	`
	var img Image
	err := r.pool.QueryRow(ctx, query, req.URL, req.Caption, req.Category, req.SortOrder).
		Scan(&img.ID, &img.URL, &img.Caption, &img.Category, &img.SortOrder, &img.CreatedAt)
	if err != nil {
		return Image{}, fmt.Errorf("gallery: create: %w", err)
	}
	return img, nil
}
