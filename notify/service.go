package notify

import (
	"context"

	"github.com/decred/slog"

	"zimship/mq"
)

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Service fans announcements out to every user's inbox.
type Service struct {
	repo   Repository
	events EventPublisher
	log    slog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: slog.Disabled}
}

func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

func (s *Service) WithLogger(log slog.Logger) *Service {
	s.log = log
	return s
}

// Broadcast inserts a notification for every profile and returns how many
// were written.
func (s *Service) Broadcast(ctx context.Context, announcementID string) (int, error) {
	res, err := s.repo.FanOut(ctx, announcementID)
	if err != nil {
		return 0, err
	}
	s.log.Infof("Announcement %s sent to %d users", announcementID, res.Count)

	if s.events != nil {
		ev := mq.AnnouncementPublished{
			AnnouncementID: res.AnnouncementID,
			Title:          res.Title,
			Recipients:     res.Count,
		}
		if err := s.events.PublishJSON(ctx, mq.RKAnnouncementPublished, ev); err != nil {
			s.log.Errorf("Publish %s: %v", mq.RKAnnouncementPublished, err)
		}
	}
	return res.Count, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	return s.repo.ListForUser(ctx, userID, limit)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}
