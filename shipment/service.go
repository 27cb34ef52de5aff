package shipment

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"zimship/mq"
)

// TrackingPattern matches every tracking number the service issues.
var TrackingPattern = regexp.MustCompile(`^ZIMSHIP-\d{5}$`)

var (
	ErrInvalidTracking = errors.New("shipment: malformed tracking number")
	// ErrUnknownStatus is returned for a target status staff cannot set.
	ErrUnknownStatus = errors.New("shipment: unknown status")
)

// predecessors lists, for each status staff can move a shipment to, the
// statuses it may be moved from. Cancellation goes through Cancel.
var predecessors = map[Status][]Status{
	StatusPaid:      {StatusPending},
	StatusCollected: {StatusPaid},
	StatusInTransit: {StatusCollected},
	StatusDelivered: {StatusInTransit},
}

// trackingAttempts bounds how many fresh numbers are drawn when a generated
// number is already taken.
const trackingAttempts = 3

// EventPublisher is the broker side of the service. A nil publisher
// disables events.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Service creates and tracks shipments.
type Service struct {
	repo              Repository
	events            EventPublisher
	idGenerator       func() string
	trackingGenerator func() string
	now               func() time.Time
	log               slog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:              repo,
		idGenerator:       func() string { return uuid.NewString() },
		trackingGenerator: NewTrackingNumber,
		now:               time.Now,
		log:               slog.Disabled,
	}
}

func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithTrackingGenerator(gen func() string) *Service {
	s.trackingGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithLogger(log slog.Logger) *Service {
	s.log = log
	return s
}

// NewTrackingNumber returns ZIMSHIP- followed by five random digits.
func NewTrackingNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		panic(fmt.Sprintf("shipment: read random: %v", err))
	}
	return fmt.Sprintf("ZIMSHIP-%05d", n.Int64())
}

// Create writes one shipment row with a fresh id and tracking number and
// announces it on the broker.
func (s *Service) Create(ctx context.Context, params CreateParams) (Shipment, error) {
	data := params.Data
	if data == nil {
		data = map[string]any{}
	}

	rec := Shipment{
		ID:          s.idGenerator(),
		UserID:      params.UserID,
		Status:      StatusPending,
		Origin:      strings.TrimSpace(params.Origin),
		Destination: strings.TrimSpace(params.Destination),
		Metadata:    data,
		CreatedAt:   s.now().UTC(),
	}

	var (
		out Shipment
		err error
	)
	for attempt := 0; attempt < trackingAttempts; attempt++ {
		rec.TrackingNumber = s.trackingGenerator()
		out, err = s.repo.Insert(ctx, rec)
		if !errors.Is(err, ErrDuplicateTracking) {
			break
		}
		s.log.Debugf("Tracking number %s taken, drawing another", rec.TrackingNumber)
	}
	if err != nil {
		return Shipment{}, err
	}
	s.log.Infof("Created shipment %s (%s)", out.ID, out.TrackingNumber)

	ev := mq.ShipmentCreated{
		ShipmentID:     out.ID,
		TrackingNumber: out.TrackingNumber,
		Email:          params.ContactEmail,
		Destination:    out.Destination,
	}
	if out.UserID != nil {
		ev.UserID = *out.UserID
	}
	s.publish(ctx, mq.RKShipmentCreated, ev)
	return out, nil
}

// Track looks a shipment up by its public tracking number.
func (s *Service) Track(ctx context.Context, trackingNumber string) (Shipment, error) {
	tn := strings.ToUpper(strings.TrimSpace(trackingNumber))
	if !TrackingPattern.MatchString(tn) {
		return Shipment{}, ErrInvalidTracking
	}
	return s.repo.GetByTracking(ctx, tn)
}

func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Shipment, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// MarkPaid moves a pending shipment to paid.
func (s *Service) MarkPaid(ctx context.Context, id string) (Shipment, error) {
	return s.transition(ctx, id, StatusPaid)
}

// Advance moves the shipment with the given tracking number one step along
// pending, paid, collected, in_transit, delivered. Setting cancelled
// cancels it. Skipping a step or moving backwards is ErrBadStatus.
func (s *Service) Advance(ctx context.Context, trackingNumber string, to Status) (Shipment, error) {
	if _, ok := predecessors[to]; !ok && to != StatusCancelled {
		return Shipment{}, ErrUnknownStatus
	}
	cur, err := s.Track(ctx, trackingNumber)
	if err != nil {
		return Shipment{}, err
	}
	if to == StatusCancelled {
		return s.Cancel(ctx, cur.ID, "cancelled by staff")
	}
	return s.transition(ctx, cur.ID, to)
}

func (s *Service) transition(ctx context.Context, id string, to Status) (Shipment, error) {
	out, err := s.repo.UpdateStatus(ctx, id, predecessors[to], to)
	if err != nil {
		return Shipment{}, err
	}
	s.log.Infof("Shipment %s is now %s", out.TrackingNumber, out.Status)
	s.publish(ctx, mq.RKShipmentStatusChanged, mq.ShipmentStatusChanged{
		ShipmentID:     out.ID,
		TrackingNumber: out.TrackingNumber,
		Status:         string(out.Status),
		Email:          contactEmail(out.Metadata),
	})
	return out, nil
}

// contactEmail reads the customer's address from the stored booking form.
func contactEmail(md map[string]any) string {
	for _, k := range []string{"email", "senderEmail"} {
		if v, ok := md[k].(string); ok && v != "" {
			return v
		}
	}
	if sender, ok := md["senderDetails"].(map[string]any); ok {
		if v, ok := sender["email"].(string); ok {
			return v
		}
	}
	return ""
}

// Cancel cancels a shipment that has not been collected yet.
func (s *Service) Cancel(ctx context.Context, id, reason string) (Shipment, error) {
	out, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending, StatusPaid}, StatusCancelled)
	if err != nil {
		return Shipment{}, err
	}
	s.log.Infof("Cancelled shipment %s: %s", out.ID, reason)
	s.publish(ctx, mq.RKShipmentCancelled, mq.ShipmentCancelled{
		ShipmentID:     out.ID,
		TrackingNumber: out.TrackingNumber,
		Reason:         reason,
	})
	return out, nil
}

// publish failures are logged only; the row is already written.
func (s *Service) publish(ctx context.Context, key string, v any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(ctx, key, v); err != nil {
		s.log.Errorf("Publish %s: %v", key, err)
	}
}
