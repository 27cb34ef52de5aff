package ticket

import (
	"context"
	"strings"

	"github.com/decred/slog"

	"zimship/email"
)

// Mailer forwards new tickets to the support inbox.
type Mailer interface {
	Send(ctx context.Context, req email.SendRequest) (string, error)
}

type Service struct {
	repo   Repository
	mailer Mailer
	log    slog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: slog.Disabled}
}

func (s *Service) WithMailer(m Mailer) *Service {
	s.mailer = m
	return s
}

func (s *Service) WithLogger(log slog.Logger) *Service {
	s.log = log
	return s
}

func (s *Service) List(ctx context.Context, userID string, admin bool) ([]Ticket, error) {
	return s.repo.List(ctx, userID, admin)
}

// Open stores the ticket and emails support. The ticket stands even when
// the email fails.
func (s *Service) Open(ctx context.Context, userID, userEmail string, req CreateRequest) (Ticket, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)

	t, err := s.repo.Create(ctx, userID, req)
	if err != nil {
		return Ticket{}, err
	}
	s.log.Infof("Ticket %s opened by %s", t.ID, userID)

	if s.mailer != nil {
		_, err := s.mailer.Send(ctx, email.SendRequest{
			Template: email.TemplateContact,
			Data: map[string]any{
				"email":    userEmail,
				"subject":  t.Subject,
				"message":  t.Message,
				"ticketId": t.ID,
			},
		})
		if err != nil {
			s.log.Warnf("Support email for ticket %s: %v", t.ID, err)
		}
	}
	return t, nil
}

func (s *Service) Resolve(ctx context.Context, userID, ticketID string, admin bool) (Ticket, error) {
	return s.repo.Resolve(ctx, userID, ticketID, admin)
}
