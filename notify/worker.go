package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/decred/slog"
	amqp "github.com/rabbitmq/amqp091-go"

	"zimship/email"
	"zimship/mq"
)

// WorkerKeys are the routing keys the worker's queue is bound to.
var WorkerKeys = []string{mq.RKShipmentCreated, mq.RKShipmentStatusChanged, mq.RKAnnouncementPublished}

// Mailer sends templated email.
type Mailer interface {
	Send(ctx context.Context, req email.SendRequest) (string, error)
}

// Worker turns broker events into customer email.
type Worker struct {
	mailer Mailer
	log    slog.Logger
}

func NewWorker(mailer Mailer, log slog.Logger) *Worker {
	if log == nil {
		log = slog.Disabled
	}
	return &Worker{mailer: mailer, log: log}
}

// Run handles deliveries until ctx is done or the channel closes. Every
// delivery is acked or dropped exactly once; nothing is requeued.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := w.handle(ctx, d); err != nil {
				w.log.Errorf("Handle %s: %v", d.RoutingKey, err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) error {
	switch d.RoutingKey {
	case mq.RKShipmentCreated:
		ev, err := mq.Decode[mq.ShipmentCreated](d.Body)
		if err != nil {
			return err
		}
		if ev.Email == "" {
			w.log.Debugf("Shipment %s has no contact email", ev.TrackingNumber)
			return nil
		}
		id, err := w.mailer.Send(ctx, email.SendRequest{
			Template: email.TemplateBookingConfirmation,
			To:       []string{ev.Email},
			Data: map[string]any{
				"trackingNumber": ev.TrackingNumber,
				"destination":    ev.Destination,
			},
		})
		if err != nil {
			return fmt.Errorf("notify: booking confirmation: %w", err)
		}
		w.log.Infof("Booking confirmation %s sent for %s", id, ev.TrackingNumber)

	case mq.RKShipmentStatusChanged:
		ev, err := mq.Decode[mq.ShipmentStatusChanged](d.Body)
		if err != nil {
			return err
		}
		if ev.Email == "" {
			w.log.Debugf("Shipment %s has no contact email", ev.TrackingNumber)
			return nil
		}
		id, err := w.mailer.Send(ctx, email.SendRequest{
			Template: email.TemplateShipmentStatus,
			To:       []string{ev.Email},
			Data: map[string]any{
				"name":           "there",
				"trackingNumber": ev.TrackingNumber,
				"status":         strings.ReplaceAll(ev.Status, "_", " "),
			},
		})
		if err != nil {
			return fmt.Errorf("notify: shipment status: %w", err)
		}
		w.log.Infof("Status update %s sent for %s", id, ev.TrackingNumber)

	case mq.RKAnnouncementPublished:
		ev, err := mq.Decode[mq.AnnouncementPublished](d.Body)
		if err != nil {
			return err
		}
		w.log.Infof("Announcement %q delivered to %d inboxes", ev.Title, ev.Recipients)

	default:
		w.log.Debugf("Skipping unknown key %s", d.RoutingKey)
	}
	return nil
}
