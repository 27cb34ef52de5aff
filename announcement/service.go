package announcement

import (
	"context"
	"strings"

	"github.com/decred/slog"
)

type Service struct {
	repo Repository
	log  slog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: slog.Disabled}
}

func (s *Service) WithLogger(log slog.Logger) *Service {
	s.log = log
	return s
}

func (s *Service) ListActive(ctx context.Context, limit int) ([]Announcement, error) {
	return s.repo.ListActive(ctx, limit)
}

// Publish stores an active announcement. Notifying users is a separate
// step so an admin can review the text first.
func (s *Service) Publish(ctx context.Context, adminID string, req CreateRequest) (Announcement, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	a, err := s.repo.Create(ctx, adminID, req)
	if err != nil {
		return Announcement{}, err
	}
	s.log.Infof("Announcement %s published by %s", a.ID, adminID)
	return a, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}
