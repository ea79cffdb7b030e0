package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"qms/booking-client/internal/api"
	"qms/booking-client/internal/models"
)

func TestTrackerOverBookingAPI(t *testing.T) {
	var actions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/tickets/mine":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "t1", "number": "A-1", "status": "waiting", "position": 1},
				{"id": "t2", "number": "A-2", "status": "waiting", "position": 2},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/tickets/t1/cancel":
			actions = append(actions, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/api/tickets/t2/call":
			actions = append(actions, r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "t2", "number": "A-2", "status": "called", "position": 0})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := api.New(api.Options{BaseURL: srv.URL, Token: "session-token", Timeout: 2 * time.Second})
	tr := NewTracker(client)
	ctx := context.Background()
	if err := tr.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	cancelled, err := tr.Cancel(ctx, "t1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.StatusCancelled || cancelled.Number != "A-1" {
		t.Fatalf("expected cancelled A-1 after 204, got %+v", cancelled)
	}
	active := tr.Active()
	if len(active) != 1 || active[0].TicketID != "t2" {
		t.Fatalf("expected only t2 active, got %+v", active)
	}

	called, err := tr.Call(ctx, "t2")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if called.Status != models.StatusCalled || called.Position != 0 {
		t.Fatalf("expected server snapshot recorded, got %+v", called)
	}
	if len(actions) != 2 {
		t.Fatalf("expected two upstream actions, got %v", actions)
	}
}
