package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"qms/booking-client/internal/models"
	"qms/booking-client/internal/realtime"
)

func TestRenderMessage(t *testing.T) {
	cases := []struct {
		name  string
		event realtime.Event
		want  string
	}{
		{"created", realtime.TicketCreated{Number: "17"}, "Ticket #17 created."},
		{"updated", realtime.TicketUpdated{Number: "17", Status: "in_progress"}, "Ticket #17 is now in progress."},
		{"queue", realtime.QueueUpdate{Message: "Queue paused"}, "Queue paused"},
		{"queue empty", realtime.QueueUpdate{}, "The queue was updated."},
		{"position", realtime.PositionUpdate{Position: 3, EstimatedWait: 12}, "You are number 3 in line, about 12 min to go."},
		{"your turn", realtime.YourTurnCalled{}, "It's your turn!"},
		{"payment", realtime.PaymentUpdate{Message: "Payment received"}, "Payment received"},
		{"booked fallback", realtime.TicketBooked{TicketRef: "T9"}, "Ticket T9 booked."},
		{"reminder", realtime.AppointmentReminder{TimeUntil: "15 minutes"}, "Your appointment starts in 15 minutes."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := renderMessage(tc.event); got != tc.want {
				t.Fatalf("renderMessage()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewAlerterSelection(t *testing.T) {
	t.Setenv("ALERT_WEBHOOK_URL", "")
	if _, ok := NewAlerter("").(logAlerter); !ok {
		t.Fatalf("expected log alerter by default")
	}
	if _, ok := NewAlerter("noop").(noopAlerter); !ok {
		t.Fatalf("expected noop alerter")
	}
	if _, ok := NewAlerter("webhook").(logAlerter); !ok {
		t.Fatalf("expected webhook without url to fall back to log")
	}
	t.Setenv("ALERT_WEBHOOK_URL", "http://alerts.test/hook")
	t.Setenv("ALERT_WEBHOOK_TOKEN", "secret")
	hook, ok := NewAlerter("webhook").(webhookAlerter)
	if !ok || hook.url != "http://alerts.test/hook" || hook.token != "secret" {
		t.Fatalf("unexpected webhook alerter %#v", hook)
	}
	if direct, ok := NewAlerter("https://alerts.test/direct").(webhookAlerter); !ok || direct.url != "https://alerts.test/direct" {
		t.Fatalf("expected literal url to select webhook")
	}
}

func TestWebhookAlerter(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	alerter := webhookAlerter{url: srv.URL, token: "secret"}
	n := models.Notification{ID: "n1", Kind: "your-turn-called", Message: "Counter 4"}
	if err := alerter.Alert(context.Background(), n); err != nil {
		t.Fatalf("alert: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected authorization %q", auth)
	}
	if got["id"] != "n1" || got["kind"] != "your-turn-called" || got["message"] != "Counter 4" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestWebhookAlerterRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := webhookAlerter{url: srv.URL}.Alert(context.Background(), models.Notification{ID: "n1"})
	if err == nil {
		t.Fatalf("expected error for rejected webhook")
	}
}
