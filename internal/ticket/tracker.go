package ticket

import (
	"context"
	"fmt"
	"log"
	"sync"

	"qms/booking-client/internal/models"
	"qms/booking-client/internal/realtime"
)

// Service is the ticket side of the HTTP collaborator.
type Service interface {
	ListMyTickets(ctx context.Context) ([]models.Ticket, error)
	CreateTicket(ctx context.Context, req models.CreateTicketRequest) (models.Ticket, error)
	TicketAction(ctx context.Context, ticketID, action string) (models.Ticket, error)
}

type Subscriber interface {
	On(kind realtime.Kind, fn realtime.HandlerFunc) func()
}

// Tracker holds the latest observed snapshot of each of the session's
// tickets. The server stays authoritative; a snapshot that would move a
// finished ticket out of its terminal state is ignored.
type Tracker struct {
	svc Service

	mu      sync.Mutex
	tickets map[string]models.Ticket
	order   []string
	offs    []func()
}

func NewTracker(svc Service) *Tracker {
	return &Tracker{svc: svc, tickets: make(map[string]models.Ticket)}
}

// Attach follows ticket-updated, payment-update and position-update events.
func (t *Tracker) Attach(sub Subscriber) {
	t.Detach()
	offs := []func(){
		sub.On(realtime.KindTicketUpdated, func(e realtime.Event) {
			if ev, ok := e.(realtime.TicketUpdated); ok {
				t.Apply(ev)
			}
		}),
		sub.On(realtime.KindPaymentUpdate, func(e realtime.Event) {
			if ev, ok := e.(realtime.PaymentUpdate); ok {
				t.ApplyPayment(ev)
			}
		}),
		sub.On(realtime.KindPositionUpdate, func(e realtime.Event) {
			if ev, ok := e.(realtime.PositionUpdate); ok {
				t.ApplyPosition(ev)
			}
		}),
	}
	t.mu.Lock()
	t.offs = offs
	t.mu.Unlock()
}

func (t *Tracker) Detach() {
	t.mu.Lock()
	offs := t.offs
	t.offs = nil
	t.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

// Load fetches the customer's tickets and records each of them.
func (t *Tracker) Load(ctx context.Context) error {
	list, err := t.svc.ListMyTickets(ctx)
	if err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	for _, tk := range list {
		t.Observe(tk)
	}
	return nil
}

// Observe records a ticket snapshot and reports whether it was applied.
func (t *Tracker) Observe(tk models.Ticket) bool {
	if tk.TicketID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.storeLocked(tk)
}

func (t *Tracker) storeLocked(tk models.Ticket) bool {
	current, ok := t.tickets[tk.TicketID]
	if ok && IsTerminal(current.Status) && tk.Status != current.Status {
		log.Printf("ignoring ticket update id=%s from=%s to=%s", tk.TicketID, current.Status, tk.Status)
		return false
	}
	if !ok {
		t.order = append(t.order, tk.TicketID)
	}
	t.tickets[tk.TicketID] = tk
	return true
}

// findLocked resolves an event reference by id, falling back to the
// display number for events that carry only that.
func (t *Tracker) findLocked(id, number string) (models.Ticket, bool) {
	if id != "" {
		tk, ok := t.tickets[id]
		return tk, ok
	}
	if number == "" {
		return models.Ticket{}, false
	}
	for _, key := range t.order {
		if tk := t.tickets[key]; tk.Number == number {
			return tk, true
		}
	}
	return models.Ticket{}, false
}

// Apply records the status carried by a ticket-updated event. Events
// without a status leave the snapshot untouched.
func (t *Tracker) Apply(e realtime.TicketUpdated) bool {
	if e.Status == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.findLocked(e.TicketID.String(), e.Number.String())
	if !ok {
		if e.TicketID == "" {
			return false
		}
		tk = models.Ticket{TicketID: e.TicketID.String(), Number: e.Number.String()}
	}
	tk.Status = e.Status
	return t.storeLocked(tk)
}

// ApplyPayment records a payment result and, for a ticket still waiting on
// payment, moves it to waiting or cancelled.
func (t *Tracker) ApplyPayment(e realtime.PaymentUpdate) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.findLocked(e.TicketID.String(), "")
	if !ok || e.Status == "" {
		return false
	}
	tk.PaymentStatus = e.Status
	var action string
	switch e.Status {
	case models.PaymentPaid:
		action = ActionConfirmPayment
	case models.PaymentFailed:
		action = ActionAbandonPayment
	}
	if action != "" && tk.Status == models.StatusPendingPayment {
		if next, err := Next(tk.Status, action, ActorSystem); err == nil {
			tk.Status = next
		}
	}
	return t.storeLocked(tk)
}

func (t *Tracker) ApplyPosition(e realtime.PositionUpdate) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.findLocked(e.TicketID.String(), "")
	if !ok || IsTerminal(tk.Status) {
		return false
	}
	tk.Position = e.Position
	t.tickets[tk.TicketID] = tk
	return true
}

func (t *Tracker) Get(id string) (models.Ticket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tickets[id]
	return tk, ok
}

// Active returns the non-terminal tickets in the order they were first seen.
func (t *Tracker) Active() []models.Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []models.Ticket
	for _, id := range t.order {
		if tk := t.tickets[id]; !IsTerminal(tk.Status) {
			out = append(out, tk)
		}
	}
	return out
}

// Book creates a ticket for the customer.
func (t *Tracker) Book(ctx context.Context, req models.CreateTicketRequest) (models.Ticket, error) {
	tk, err := t.svc.CreateTicket(ctx, req)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("book ticket: %w", err)
	}
	if tk.Status == "" {
		tk.Status = InitialStatus(req.PaymentMethod)
	}
	if tk.BusinessID == "" {
		tk.BusinessID = req.BusinessID
	}
	t.Observe(tk)
	return tk, nil
}

// Cancel withdraws a waiting ticket on behalf of its owner.
func (t *Tracker) Cancel(ctx context.Context, ticketID string) (models.Ticket, error) {
	return t.act(ctx, ticketID, ActionCancel, ActorCustomer)
}

func (t *Tracker) Call(ctx context.Context, ticketID string) (models.Ticket, error) {
	return t.act(ctx, ticketID, ActionCall, ActorBusiness)
}

func (t *Tracker) Start(ctx context.Context, ticketID string) (models.Ticket, error) {
	return t.act(ctx, ticketID, ActionStart, ActorBusiness)
}

func (t *Tracker) Serve(ctx context.Context, ticketID string) (models.Ticket, error) {
	return t.act(ctx, ticketID, ActionServe, ActorBusiness)
}

func (t *Tracker) act(ctx context.Context, ticketID, action string, actor Actor) (models.Ticket, error) {
	current, ok := t.Get(ticketID)
	if !ok {
		return models.Ticket{}, &ValidationError{TicketID: ticketID, Action: action, Err: ErrTicketNotFound}
	}
	next, err := Next(current.Status, action, actor)
	if err != nil {
		return models.Ticket{}, &ValidationError{TicketID: ticketID, Action: action, Status: current.Status, Err: err}
	}

	updated, err := t.svc.TicketAction(ctx, ticketID, action)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("%s ticket %s: %w", action, ticketID, err)
	}
	switch {
	case updated.TicketID == "":
		// empty or 204 response
		updated = current
		updated.Status = next
	case updated.Status == "":
		updated.Status = next
	}
	t.Observe(updated)
	return updated, nil
}
