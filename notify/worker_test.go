package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"zimship/email"
	"zimship/mq"
)

func TestWorkerSendsBookingConfirmation(t *testing.T) {
	mailer := &fakeMailer{}
	ack := &fakeAcknowledger{}
	w := NewWorker(mailer, nil)

	body, _ := json.Marshal(mq.ShipmentCreated{ShipmentID: "s-1", TrackingNumber: "ZIMSHIP-00042", Email: "a@example.com"})
	runDeliveries(t, w, amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, RoutingKey: mq.RKShipmentCreated, Body: body})

	if len(mailer.reqs) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.reqs))
	}
	req := mailer.reqs[0]
	if req.Template != email.TemplateBookingConfirmation || req.To[0] != "a@example.com" || req.Data["trackingNumber"] != "ZIMSHIP-00042" {
		t.Fatalf("unexpected request %+v", req)
	}
	if ack.acked != 1 || ack.nacked != 0 {
		t.Fatalf("expected ack, got acked=%d nacked=%d", ack.acked, ack.nacked)
	}
}

func TestWorkerSendsStatusUpdate(t *testing.T) {
	mailer := &fakeMailer{}
	ack := &fakeAcknowledger{}
	w := NewWorker(mailer, nil)

	body, _ := json.Marshal(mq.ShipmentStatusChanged{TrackingNumber: "ZIMSHIP-00042", Status: "in_transit", Email: "a@example.com"})
	noEmail, _ := json.Marshal(mq.ShipmentStatusChanged{TrackingNumber: "ZIMSHIP-00043", Status: "delivered"})
	runDeliveries(t, w,
		amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, RoutingKey: mq.RKShipmentStatusChanged, Body: body},
		amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, RoutingKey: mq.RKShipmentStatusChanged, Body: noEmail},
	)

	if len(mailer.reqs) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.reqs))
	}
	req := mailer.reqs[0]
	if req.Template != email.TemplateShipmentStatus || req.To[0] != "a@example.com" || req.Data["status"] != "in transit" {
		t.Fatalf("unexpected request %+v", req)
	}
	if ack.acked != 2 {
		t.Fatalf("expected two acks, got %d", ack.acked)
	}
}

func TestWorkerDropsFailures(t *testing.T) {
	ack := &fakeAcknowledger{}
	w := NewWorker(&fakeMailer{err: errors.New("resend down")}, nil)

	good, _ := json.Marshal(mq.ShipmentCreated{TrackingNumber: "ZIMSHIP-00001", Email: "a@example.com"})
	runDeliveries(t, w,
		amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, RoutingKey: mq.RKShipmentCreated, Body: []byte("{")},
		amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, RoutingKey: mq.RKShipmentCreated, Body: good},
	)
	if ack.nacked != 2 || ack.requeued != 0 {
		t.Fatalf("expected two drops without requeue, got nacked=%d requeued=%d", ack.nacked, ack.requeued)
	}
}

func TestWorkerAcksUnknownAndAddresslessEvents(t *testing.T) {
	mailer := &fakeMailer{}
	ack := &fakeAcknowledger{}
	w := NewWorker(mailer, nil)

	noEmail, _ := json.Marshal(mq.ShipmentCreated{TrackingNumber: "ZIMSHIP-00002"})
	published, _ := json.Marshal(mq.AnnouncementPublished{Title: "Hello", Recipients: 4})
	runDeliveries(t, w,
		amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, RoutingKey: mq.RKShipmentCreated, Body: noEmail},
		amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, RoutingKey: mq.RKAnnouncementPublished, Body: published},
		amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, RoutingKey: "something.else", Body: []byte("x")},
	)
	if ack.acked != 3 {
		t.Fatalf("expected three acks, got %d", ack.acked)
	}
	if len(mailer.reqs) != 0 {
		t.Fatal("no email expected")
	}
}

func runDeliveries(t *testing.T, w *Worker, ds ...amqp.Delivery) {
	t.Helper()
	ch := make(chan amqp.Delivery, len(ds))
	for _, d := range ds {
		ch <- d
	}
	close(ch)
	if err := w.Run(context.Background(), ch); err != nil {
		t.Fatalf("run: %v", err)
	}
}

type fakeMailer struct {
	reqs []email.SendRequest
	err  error
}

func (f *fakeMailer) Send(_ context.Context, req email.SendRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.reqs = append(f.reqs, req)
	return "em_1", nil
}

type fakeAcknowledger struct {
	acked, nacked, requeued int
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.acked++
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	if requeue {
		f.requeued++
	}
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return f.Nack(0, false, requeue)
}
