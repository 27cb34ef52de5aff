package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/decred/slog"

	"zimship/mq"
)

var (
	// ErrNotConfigured is returned when no provider key is set.
	ErrNotConfigured = errors.New("payment: provider is not configured")
	ErrInvalidAmount = errors.New("payment: amount must be positive")
)

// EventPublisher announces created sessions.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Service turns booking requests into hosted checkout sessions.
type Service struct {
	provider Provider
	siteURL  string
	events   EventPublisher
	log      slog.Logger
}

// NewService builds a Service. A nil provider makes every call fail with
// ErrNotConfigured.
func NewService(provider Provider, siteURL string) *Service {
	return &Service{
		provider: provider,
		siteURL:  strings.TrimRight(siteURL, "/"),
		log:      slog.Disabled,
	}
}

func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

func (s *Service) WithLogger(log slog.Logger) *Service {
	s.log = log
	return s
}

// CreateSession prices req in pence and asks the provider for a checkout.
// Provider errors are returned as is; nothing is retried.
func (s *Service) CreateSession(ctx context.Context, req Request) (Result, error) {
	if s.provider == nil {
		return Result{}, ErrNotConfigured
	}
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return Result{}, ErrInvalidAmount
	}

	in := SessionInput{
		AmountPence:    int64(math.Round(req.Amount * 100)),
		Currency:       "gbp",
		Description:    "UK to Zimbabwe shipment",
		CustomerEmail:  lookupString(req.BookingData, "email", "senderEmail"),
		ShipmentID:     lookupString(req.BookingData, "shipmentId"),
		TrackingNumber: lookupString(req.BookingData, "trackingNumber"),
		Method:         strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		Token:          req.Token,
	}
	if in.TrackingNumber != "" {
		in.Description = "Shipment " + in.TrackingNumber
	}
	in.SuccessURL = s.siteURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}"
	in.CancelURL = s.siteURL + "/book-shipment?cancelled=true"
	if in.TrackingNumber != "" {
		in.CancelURL += "&tracking=" + in.TrackingNumber
	}

	res, err := s.provider.CreateSession(ctx, in)
	if err != nil {
		s.log.Errorf("%s session for %d pence: %v", s.provider.Name(), in.AmountPence, err)
		return Result{}, err
	}
	s.log.Infof("Created %s session %s", s.provider.Name(), res.SessionID)

	if s.events != nil {
		ev := mq.PaymentSessionCreated{SessionID: res.SessionID, Provider: s.provider.Name(), AmountPence: in.AmountPence}
		if err := s.events.PublishJSON(ctx, mq.RKPaymentSessionCreated, ev); err != nil {
			s.log.Errorf("Publish %s: %v", mq.RKPaymentSessionCreated, err)
		}
	}
	return res, nil
}

// lookupString returns the first non-empty string among keys, searching the
// top level and the nested senderDetails object.
func lookupString(data map[string]any, keys ...string) string {
	if data == nil {
		return ""
	}
	for _, k := range keys {
		if v, ok := data[k].(string); ok && v != "" {
			return v
		}
	}
	if nested, ok := data["senderDetails"].(map[string]any); ok {
		return lookupString(nested, keys...)
	}
	return ""
}

// NewProvider picks the provider named by name using the configured keys.
// Missing keys yield a nil provider, not an error.
func NewProvider(name, stripeKey, omisePublic, omiseSecret string) (Provider, error) {
	switch strings.ToLower(name) {
	case "", "stripe":
		if stripeKey == "" {
			return nil, nil
		}
		return NewStripeProvider(stripeKey, nil), nil
	case "omise":
		if omiseSecret == "" {
			return nil, nil
		}
		p, err := NewOmiseProvider(omisePublic, omiseSecret)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("payment: unknown provider %q", name)
	}
}
