package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeSender struct {
	msgs []Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, m Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.msgs = append(f.msgs, m)
	return "msg-1", nil
}

func newTestService(t *testing.T, sender Sender) *Service {
	t.Helper()
	svc, err := NewService(sender, "ZimShip <noreply@example.com>", "support@example.com")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRenderEveryTemplate(t *testing.T) {
	svc := newTestService(t, nil)
	data := map[string]any{
		"name":           "Tendai",
		"trackingNumber": "ZIMSHIP-00123",
		"status":         "in_transit",
		"title":          "Christmas schedule",
		"body":           "Last collection is 10 December.",
		"subject":        "Lost parcel",
		"email":          "t@example.com",
		"message":        "Where is my drum?",
	}
	for _, name := range []string{TemplateBookingConfirmation, TemplateContact, TemplateShipmentStatus, TemplateAnnouncement} {
		subject, body, err := svc.Render(name, data)
		if err != nil {
			t.Fatalf("%s: render: %v", name, err)
		}
		if subject == "" || body == "" {
			t.Fatalf("%s: empty output", name)
		}
	}

	subject, body, _ := svc.Render(TemplateBookingConfirmation, data)
	if subject != "Booking confirmed: ZIMSHIP-00123" || !strings.Contains(body, "ZIMSHIP-00123") {
		t.Fatalf("unexpected booking email %q %q", subject, body)
	}
}

func TestRenderEscapesHTML(t *testing.T) {
	svc := newTestService(t, nil)
	_, body, err := svc.Render(TemplateContact, map[string]any{"message": "<script>alert(1)</script>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Fatalf("expected escaped body, got %q", body)
	}
}

func TestSendRoutesContactToSupport(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(t, sender)

	id, err := svc.Send(context.Background(), SendRequest{
		Template: TemplateContact,
		Data:     map[string]any{"email": "customer@example.com", "subject": "Quote"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("unexpected id %q", id)
	}
	m := sender.msgs[0]
	if len(m.To) != 1 || m.To[0] != "support@example.com" || m.ReplyTo != "customer@example.com" {
		t.Fatalf("unexpected routing %+v", m)
	}
	if m.Subject != "Support request: Quote" {
		t.Fatalf("unexpected subject %q", m.Subject)
	}
}

func TestSendErrors(t *testing.T) {
	if _, err := newTestService(t, nil).Send(context.Background(), SendRequest{Template: TemplateAnnouncement, To: []string{"a@example.com"}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	svc := newTestService(t, &fakeSender{})
	if _, err := svc.Send(context.Background(), SendRequest{Template: "nope", To: []string{"a@example.com"}}); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
	if _, err := svc.Send(context.Background(), SendRequest{Template: TemplateAnnouncement}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
	want := errors.New("rate limited")
	svc = newTestService(t, &fakeSender{err: want})
	if _, err := svc.Send(context.Background(), SendRequest{Template: TemplateAnnouncement, To: []string{"a@example.com"}}); !errors.Is(err, want) {
		t.Fatalf("expected sender error, got %v", err)
	}
}

func TestResendSenderPostsEmail(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer re_test" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"4ef9a417-02e9-4d39-ad75-9611e0fcc33c"}`))
	}))
	defer srv.Close()

	sender, err := NewResendSender("re_test").WithBaseURL(srv.URL)
	if err != nil {
		t.Fatalf("base url: %v", err)
	}
	id, err := sender.Send(context.Background(), Message{
		From:    "noreply@example.com",
		To:      []string{"a@example.com"},
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "4ef9a417-02e9-4d39-ad75-9611e0fcc33c" {
		t.Fatalf("unexpected id %q", id)
	}
	if got["subject"] != "Hello" || got["html"] != "<p>Hi</p>" {
		t.Fatalf("unexpected payload %v", got)
	}
}
