package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"github.com/decred/slog"
	"github.com/resend/resend-go/v2"
)

var (
	// ErrNotConfigured is returned when RESEND_API_KEY is unset.
	ErrNotConfigured   = errors.New("email: RESEND_API_KEY is not configured")
	ErrUnknownTemplate = errors.New("email: unknown template")
	ErrNoRecipient     = errors.New("email: at least one recipient is required")
)

// Template names accepted by Send.
const (
	TemplateBookingConfirmation = "booking_confirmation"
	TemplateContact             = "contact"
	TemplateShipmentStatus      = "shipment_status"
	TemplateAnnouncement        = "announcement"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[string]string{
	TemplateBookingConfirmation: `Booking confirmed: {{or .trackingNumber ""}}`,
	TemplateContact:             `Support request: {{or .subject "website enquiry"}}`,
	TemplateShipmentStatus:      `Shipment {{or .trackingNumber ""}} is {{or .status "updated"}}`,
	TemplateAnnouncement:        `{{or .title "Announcement"}}`,
}

// Message is a rendered email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	ReplyTo string
}

// Sender delivers a rendered message and returns the provider's id.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}

// ResendSender delivers through the Resend API.
type ResendSender struct {
	client *resend.Client
}

func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

// WithBaseURL points the client at another API host.
func (s *ResendSender) WithBaseURL(raw string) (*ResendSender, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("email: parse base url: %w", err)
	}
	s.client.BaseURL = u
	return s, nil
}

func (s *ResendSender) Send(ctx context.Context, m Message) (string, error) {
	req := &resend.SendEmailRequest{
		From:    m.From,
		To:      m.To,
		Subject: m.Subject,
		Html:    m.HTML,
		ReplyTo: m.ReplyTo,
	}
	sent, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("email: resend: %w", err)
	}
	return sent.Id, nil
}

// SendRequest is the send-email body.
type SendRequest struct {
	Template string         `json:"template" validate:"required"`
	To       []string       `json:"to" validate:"omitempty,dive,email"`
	Data     map[string]any `json:"data"`
}

// Service renders templates and hands them to a Sender.
type Service struct {
	sender  Sender
	from    string
	support string
	html    *template.Template
	subject map[string]*texttemplate.Template
	log     slog.Logger
}

// NewService parses the embedded templates. A nil sender makes Send fail
// with ErrNotConfigured. Contact messages go to support when no recipient
// is given.
func NewService(sender Sender, from, support string) (*Service, error) {
	html, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("email: parse templates: %w", err)
	}
	subj := make(map[string]*texttemplate.Template, len(subjects))
	for name, src := range subjects {
		t, err := texttemplate.New(name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("email: parse subject %s: %w", name, err)
		}
		subj[name] = t
	}
	return &Service{
		sender:  sender,
		from:    from,
		support: support,
		html:    html,
		subject: subj,
		log:     slog.Disabled,
	}, nil
}

func (s *Service) WithLogger(log slog.Logger) *Service {
	s.log = log
	return s
}

// Render produces the subject and HTML body for a template.
func (s *Service) Render(name string, data map[string]any) (string, string, error) {
	subj, ok := s.subject[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	if data == nil {
		data = map[string]any{}
	}

	var sb strings.Builder
	if err := subj.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("email: render subject: %w", err)
	}
	var body bytes.Buffer
	if err := s.html.ExecuteTemplate(&body, name+".html", data); err != nil {
		return "", "", fmt.Errorf("email: render %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), body.String(), nil
}

// Send renders req and delivers it, returning the provider message id.
func (s *Service) Send(ctx context.Context, req SendRequest) (string, error) {
	if s.sender == nil {
		return "", ErrNotConfigured
	}

	subject, body, err := s.Render(req.Template, req.Data)
	if err != nil {
		return "", err
	}

	to := req.To
	var replyTo string
	if req.Template == TemplateContact {
		if len(to) == 0 && s.support != "" {
			to = []string{s.support}
		}
		if e, ok := req.Data["email"].(string); ok {
			replyTo = e
		}
	}
	if len(to) == 0 {
		return "", ErrNoRecipient
	}

	id, err := s.sender.Send(ctx, Message{From: s.from, To: to, Subject: subject, HTML: body, ReplyTo: replyTo})
	if err != nil {
		s.log.Errorf("Send %s to %d recipients: %v", req.Template, len(to), err)
		return "", err
	}
	s.log.Infof("Sent %s email %s", req.Template, id)
	return id, nil
}
