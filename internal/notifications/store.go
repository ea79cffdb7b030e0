package notifications

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"sort"
	"sync"
	"time"

	"qms/booking-client/internal/models"
	"qms/booking-client/internal/realtime"

	"github.com/google/uuid"
)

// MaxNotifications bounds both the in-memory list and hydration.
const MaxNotifications = 50

var (
	notificationsTotal = expvar.NewInt("notifications_total")
	duplicatesDropped  = expvar.NewInt("notifications_duplicates_total")
)

// Kinds are the inbound event kinds that become notifications.
var Kinds = []realtime.Kind{
	realtime.KindTicketCreated,
	realtime.KindTicketUpdated,
	realtime.KindQueueUpdate,
	realtime.KindPositionUpdate,
	realtime.KindYourTurnCalled,
	realtime.KindPaymentUpdate,
	realtime.KindTicketBooked,
	realtime.KindAppointmentReminder,
}

var alertKinds = map[realtime.Kind]bool{
	realtime.KindYourTurnCalled:      true,
	realtime.KindPaymentUpdate:       true,
	realtime.KindTicketBooked:        true,
	realtime.KindAppointmentReminder: true,
}

// Persistence is the server-side notification collaborator.
type Persistence interface {
	FetchNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Presentation tells the store what the host is currently showing.
type Presentation interface {
	OnConfirmationSurface() bool
}

type PresentationFunc func() bool

func (f PresentationFunc) OnConfirmationSurface() bool { return f() }

type Subscriber interface {
	On(kind realtime.Kind, fn realtime.HandlerFunc) func()
}

type Options struct {
	Persistence  Persistence
	Alerter      Alerter
	Presentation Presentation
	Now          func() time.Time
	NewID        func() string
}

// Store turns inbound events into a bounded, newest-first notification list.
type Store struct {
	persistence  Persistence
	alerter      Alerter
	presentation Presentation
	now          func() time.Time
	newID        func() string

	mu         sync.Mutex
	items      []models.Notification
	lastBooked string
	hydrated   bool
	offs       []func()

	inflight sync.WaitGroup
}

func New(opts Options) *Store {
	s := &Store{
		persistence:  opts.Persistence,
		alerter:      opts.Alerter,
		presentation: opts.Presentation,
		now:          opts.Now,
		newID:        opts.NewID,
	}
	if s.alerter == nil {
		s.alerter = noopAlerter{}
	}
	if s.presentation == nil {
		s.presentation = PresentationFunc(func() bool { return false })
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Attach subscribes the store to every notification kind. Calling it again
// first drops the previous subscriptions.
func (s *Store) Attach(sub Subscriber) {
	s.Detach()
	offs := make([]func(), 0, len(Kinds))
	for _, kind := range Kinds {
		offs = append(offs, sub.On(kind, s.Handle))
	}
	s.mu.Lock()
	s.offs = offs
	s.mu.Unlock()
}

func (s *Store) Detach() {
	s.mu.Lock()
	offs := s.offs
	s.offs = nil
	s.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

// Handle records one inbound event. A ticket-booked event repeating the
// previous ticket-booked reference is dropped without an alert. Alerts run
// on their own goroutine and Wait drains them.
func (s *Store) Handle(event realtime.Event) {
	kind := event.Kind()
	if _, ok := defaultTemplates[kind]; !ok {
		return
	}

	s.mu.Lock()
	if booked, ok := event.(realtime.TicketBooked); ok {
		ref := booked.TicketRef.String()
		if ref != "" && ref == s.lastBooked {
			s.mu.Unlock()
			duplicatesDropped.Add(1)
			return
		}
		s.lastBooked = ref
	}
	payload, _ := json.Marshal(event)
	n := models.Notification{
		ID:        s.newID(),
		Kind:      string(kind),
		Message:   renderMessage(event),
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	s.items = prepend(s.items, n)
	s.mu.Unlock()
	notificationsTotal.Add(1)

	if !alertKinds[kind] {
		return
	}
	if kind == realtime.KindTicketBooked && s.presentation.OnConfirmationSurface() {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.alerter.Alert(context.Background(), n); err != nil {
			log.Printf("alert error kind=%s id=%s: %v", kind, n.ID, err)
		}
	}()
}

func prepend(items []models.Notification, n models.Notification) []models.Notification {
	out := make([]models.Notification, 0, min(len(items)+1, MaxNotifications))
	out = append(out, n)
	for _, item := range items {
		if len(out) == MaxNotifications {
			break
		}
		out = append(out, item)
	}
	return out
}

// Hydrate replaces the list with the persisted notifications. Only the
// first call fetches; failures are logged and leave the list as it was.
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.Lock()
	if s.hydrated || s.persistence == nil {
		s.mu.Unlock()
		return
	}
	s.hydrated = true
	s.mu.Unlock()

	list, err := s.persistence.FetchNotifications(ctx, MaxNotifications)
	if err != nil {
		log.Printf("hydrate notifications error: %v", err)
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
	if len(list) > MaxNotifications {
		list = list[:MaxNotifications]
	}

	s.mu.Lock()
	s.items = append([]models.Notification(nil), list...)
	s.mu.Unlock()
}

// MarkAsRead flips the local flag and, for server-issued ids only, sends a
// fire-and-forget acknowledgement upstream.
func (s *Store) MarkAsRead(id string) {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsRead = true
		}
	}
	s.mu.Unlock()

	if s.persistence == nil || !IsServerID(id) {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.persistence.MarkNotificationRead(context.Background(), id); err != nil {
			log.Printf("mark notification read error id=%s: %v", id, err)
		}
	}()
}

// Remove dismisses one notification locally; the server is not told.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

func (s *Store) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.items...)
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		if !item.IsRead {
			count++
		}
	}
	return count
}

// Wait blocks until outstanding alerts and read acknowledgements finish.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// IsServerID reports whether id has the shape of a persisted notification
// id: 24 hexadecimal characters.
func IsServerID(id string) bool {
	if len(id) != 24 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
