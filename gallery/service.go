package gallery

import "context"

// DefaultCategory is used when an image is added without one.
const DefaultCategory = "general"

// Service exposes gallery operations.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns up to limit images, all categories when category is empty.
func (s *Service) List(ctx context.Context, category string, limit int) ([]Image, error) {
	return s.repo.List(ctx, category, limit)
}

// Add stores a new image. Callers check the admin flag first.
func (s *Service) Add(ctx context.Context, req CreateRequest) (Image, error) {
	if req.Category == "" {
		req.Category = DefaultCategory
	}
	return s.repo.Create(ctx, req)
}
