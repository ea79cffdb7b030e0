package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"qms/booking-client/internal/models"
	"qms/booking-client/internal/realtime"
)

type fakePersistence struct {
	mu       sync.Mutex
	fetchFn  func(ctx context.Context, limit int) ([]models.Notification, error)
	fetches  int
	readIDs  []string
	readErr  error
	lastSize int
}

func (f *fakePersistence) FetchNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	f.mu.Lock()
	f.fetches++
	f.lastSize = limit
	f.mu.Unlock()
	if f.fetchFn == nil {
		return nil, nil
	}
	return f.fetchFn(ctx, limit)
}

func (f *fakePersistence) MarkNotificationRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readIDs = append(f.readIDs, id)
	return f.readErr
}

func (f *fakePersistence) reads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.readIDs...)
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []models.Notification
}

func (a *recordingAlerter) Alert(ctx context.Context, n models.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, n)
	return nil
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(p *fakePersistence, a Alerter, presentation Presentation) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	seq := 0
	s := New(Options{
		Persistence:  p,
		Alerter:      a,
		Presentation: presentation,
		Now:          clock.Now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("local-%d", seq)
		},
	})
	return s, clock
}

func TestListNeverExceedsLimit(t *testing.T) {
	s, clock := newTestStore(nil, nil, nil)
	events := []realtime.Event{
		realtime.TicketCreated{Number: "1"},
		realtime.QueueUpdate{Message: "paused"},
		realtime.PositionUpdate{Position: 2, EstimatedWait: 5},
		realtime.TicketBooked{TicketRef: "T0"},
	}
	for i := 0; i < 130; i++ {
		event := events[i%len(events)]
		if booked, ok := event.(realtime.TicketBooked); ok {
			booked.TicketRef = realtime.Ref(fmt.Sprintf("T%d", i))
			event = booked
		}
		s.Handle(event)
		clock.Advance(time.Second)
		if n := len(s.Notifications()); n > MaxNotifications {
			t.Fatalf("list grew to %d after %d events", n, i+1)
		}
	}
	list := s.Notifications()
	if len(list) != MaxNotifications {
		t.Fatalf("expected a full list, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].Timestamp.After(list[i-1].Timestamp) {
			t.Fatalf("list not newest first at %d", i)
		}
	}
	if list[0].ID != "local-130" {
		t.Fatalf("expected newest notification first, got %s", list[0].ID)
	}
}

func TestTicketBookedDeduplicated(t *testing.T) {
	alerter := &recordingAlerter{}
	s, clock := newTestStore(nil, alerter, nil)
	registry := realtime.NewRegistry()
	s.Attach(registry)

	registry.Dispatch(realtime.TicketBooked{TicketRef: "T1", Message: "Ticket T1 booked"})
	clock.Advance(200 * time.Millisecond)
	registry.Dispatch(realtime.TicketBooked{TicketRef: "T1", Message: "Ticket T1 booked"})
	s.Wait()

	if n := len(s.Notifications()); n != 1 {
		t.Fatalf("expected one notification for a redelivered booking, got %d", n)
	}
	if alerter.count() != 1 {
		t.Fatalf("expected one alert, got %d", alerter.count())
	}

	registry.Dispatch(realtime.TicketBooked{TicketRef: "T2"})
	registry.Dispatch(realtime.TicketBooked{TicketRef: "T1"})
	if n := len(s.Notifications()); n != 3 {
		t.Fatalf("expected only consecutive repeats dropped, got %d notifications", n)
	}
}

func TestAttachIsNotCumulative(t *testing.T) {
	s, _ := newTestStore(nil, nil, nil)
	registry := realtime.NewRegistry()
	s.Attach(registry)
	s.Attach(registry)
	if registry.Count() != len(Kinds) {
		t.Fatalf("expected %d handlers, got %d", len(Kinds), registry.Count())
	}
	registry.Dispatch(realtime.TicketCreated{Number: "9"})
	if n := len(s.Notifications()); n != 1 {
		t.Fatalf("expected one notification, got %d", n)
	}
	s.Detach()
	if registry.Count() != 0 {
		t.Fatalf("expected no handlers after detach, got %d", registry.Count())
	}
}

func TestConfirmationSurfaceSuppressesBookingAlert(t *testing.T) {
	alerter := &recordingAlerter{}
	onConfirmation := true
	s, _ := newTestStore(nil, alerter, PresentationFunc(func() bool { return onConfirmation }))

	s.Handle(realtime.TicketBooked{TicketRef: "T1", Message: "booked"})
	s.Wait()
	if n := len(s.Notifications()); n != 1 {
		t.Fatalf("expected notification while on confirmation surface, got %d", n)
	}
	if alerter.count() != 0 {
		t.Fatalf("expected no alert on the confirmation surface")
	}

	s.Handle(realtime.YourTurnCalled{Message: "Counter 2"})
	s.Wait()
	if alerter.count() != 1 {
		t.Fatalf("expected other kinds to keep alerting, got %d", alerter.count())
	}

	onConfirmation = false
	s.Handle(realtime.TicketBooked{TicketRef: "T2"})
	s.Wait()
	if alerter.count() != 2 {
		t.Fatalf("expected booking alert off the confirmation surface, got %d", alerter.count())
	}
}

type blockingAlerter struct {
	release chan struct{}
	done    chan string
}

func (a blockingAlerter) Alert(ctx context.Context, n models.Notification) error {
	<-a.release
	a.done <- n.Message
	return nil
}

func TestSlowAlerterDoesNotBlockHandle(t *testing.T) {
	alerter := blockingAlerter{release: make(chan struct{}), done: make(chan string, 4)}
	s, _ := newTestStore(nil, alerter, nil)

	handled := make(chan struct{})
	go func() {
		s.Handle(realtime.YourTurnCalled{Message: "Counter 1"})
		s.Handle(realtime.PaymentUpdate{Message: "Payment received"})
		close(handled)
	}()
	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatalf("Handle blocked on the alerter")
	}
	if n := len(s.Notifications()); n != 2 {
		t.Fatalf("expected both notifications recorded, got %d", n)
	}

	close(alerter.release)
	s.Wait()
	if len(alerter.done) != 2 {
		t.Fatalf("expected Wait to drain both alerts, got %d", len(alerter.done))
	}
}

func TestNonAlertingKinds(t *testing.T) {
	alerter := &recordingAlerter{}
	s, _ := newTestStore(nil, alerter, nil)
	s.Handle(realtime.TicketCreated{Number: "3"})
	s.Handle(realtime.PositionUpdate{Position: 1})
	s.Handle(realtime.Lifecycle{Type: realtime.KindConnect})
	s.Wait()
	if alerter.count() != 0 {
		t.Fatalf("expected no alerts, got %d", alerter.count())
	}
	if n := len(s.Notifications()); n != 2 {
		t.Fatalf("expected lifecycle events ignored, got %d notifications", n)
	}
}

func TestMarkAsRead(t *testing.T) {
	p := &fakePersistence{}
	serverID := "65f1c0ffee0123456789abcd"
	p.fetchFn = func(ctx context.Context, limit int) ([]models.Notification, error) {
		return []models.Notification{{ID: serverID, Kind: "ticket-created", Message: "persisted"}}, nil
	}
	s, _ := newTestStore(p, nil, nil)
	s.Hydrate(context.Background())
	s.Handle(realtime.TicketCreated{Number: "5"})

	s.MarkAsRead("local-1")
	s.Wait()
	if reads := p.reads(); len(reads) != 0 {
		t.Fatalf("expected no upstream call for a local id, got %v", reads)
	}
	if s.UnreadCount() != 1 {
		t.Fatalf("expected local id marked read, unread=%d", s.UnreadCount())
	}

	s.MarkAsRead(serverID)
	s.Wait()
	if reads := p.reads(); len(reads) != 1 || reads[0] != serverID {
		t.Fatalf("expected one acknowledgement, got %v", reads)
	}
	if s.UnreadCount() != 0 {
		t.Fatalf("expected all read, unread=%d", s.UnreadCount())
	}
}

func TestMarkAsReadFailureIsAbsorbed(t *testing.T) {
	p := &fakePersistence{readErr: errors.New("502 bad gateway")}
	s, _ := newTestStore(p, nil, nil)
	s.mu.Lock()
	s.items = []models.Notification{{ID: "65f1c0ffee0123456789abcd"}}
	s.mu.Unlock()

	s.MarkAsRead("65f1c0ffee0123456789abcd")
	s.Wait()
	if !s.Notifications()[0].IsRead {
		t.Fatalf("expected local read state kept after upstream failure")
	}
}

func TestRemoveAndClearStayLocal(t *testing.T) {
	p := &fakePersistence{}
	s, _ := newTestStore(p, nil, nil)
	s.Handle(realtime.TicketCreated{Number: "1"})
	s.Handle(realtime.TicketCreated{Number: "2"})

	if !s.Remove("local-1") {
		t.Fatalf("expected removal")
	}
	if s.Remove("missing") {
		t.Fatalf("expected missing id to report false")
	}
	if list := s.Notifications(); len(list) != 1 || list[0].ID != "local-2" {
		t.Fatalf("unexpected list %+v", list)
	}
	s.Clear()
	s.Wait()
	if len(s.Notifications()) != 0 {
		t.Fatalf("expected empty list after clear")
	}
	if len(p.reads()) != 0 || p.fetches != 0 {
		t.Fatalf("expected no upstream traffic")
	}
}

func TestHydrate(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	p := &fakePersistence{}
	p.fetchFn = func(ctx context.Context, limit int) ([]models.Notification, error) {
		var list []models.Notification
		for i := 0; i < 60; i++ {
			list = append(list, models.Notification{
				ID:        fmt.Sprintf("%024x", i),
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			})
		}
		return list, nil
	}
	s, _ := newTestStore(p, nil, nil)
	s.Handle(realtime.TicketCreated{Number: "stale"})

	s.Hydrate(context.Background())
	list := s.Notifications()
	if len(list) != MaxNotifications {
		t.Fatalf("expected hydration bounded to %d, got %d", MaxNotifications, len(list))
	}
	if p.lastSize != MaxNotifications {
		t.Fatalf("expected fetch limit %d, got %d", MaxNotifications, p.lastSize)
	}
	if list[0].ID != fmt.Sprintf("%024x", 59) {
		t.Fatalf("expected newest persisted first, got %s", list[0].ID)
	}
	for _, n := range list {
		if n.ID == "local-1" {
			t.Fatalf("expected hydration to replace the in-memory list")
		}
	}

	s.Handle(realtime.TicketCreated{Number: "10"})
	s.Hydrate(context.Background())
	if p.fetches != 1 {
		t.Fatalf("expected a single fetch, got %d", p.fetches)
	}
	if got := s.Notifications()[0].Message; got != "Ticket #10 created." {
		t.Fatalf("expected events to keep flowing after hydration, got %q", got)
	}
}

func TestHydrateFailureKeepsState(t *testing.T) {
	p := &fakePersistence{fetchFn: func(ctx context.Context, limit int) ([]models.Notification, error) {
		return nil, errors.New("connection refused")
	}}
	s, _ := newTestStore(p, nil, nil)
	s.Handle(realtime.QueueUpdate{Message: "Queue paused"})
	s.Hydrate(context.Background())
	if list := s.Notifications(); len(list) != 1 || list[0].Message != "Queue paused" {
		t.Fatalf("expected last-known list kept, got %+v", list)
	}
}

func TestIsServerID(t *testing.T) {
	cases := map[string]bool{
		"65f1c0ffee0123456789abcd":             true,
		"65F1C0FFEE0123456789ABCD":             true,
		"65f1c0ffee0123456789abc":              false,
		"65f1c0ffee0123456789abcz":             false,
		"3f2b8c1e-8d4e-4a63-9d0e-6c2f1b7a9e11": false,
		"":                                     false,
	}
	for id, want := range cases {
		if got := IsServerID(id); got != want {
			t.Fatalf("IsServerID(%q)=%v, want %v", id, got, want)
		}
	}
}
