package queue

import (
	"context"
	"fmt"
	"log"
	"sync"

	"qms/booking-client/internal/models"
	"qms/booking-client/internal/realtime"
)

// Source looks up the queue record of a business; a nil queue with a nil
// error means the business has none.
type Source interface {
	QueueByBusiness(ctx context.Context, businessID string) (*models.Queue, error)
}

type Subscriber interface {
	On(kind realtime.Kind, fn realtime.HandlerFunc) func()
}

// View tracks the latest observed queue state per business.
type View struct {
	src Source

	mu       sync.Mutex
	states   map[string]State
	business map[string]string
	offs     []func()
}

func NewView(src Source) *View {
	return &View{
		src:      src,
		states:   make(map[string]State),
		business: make(map[string]string),
	}
}

func (v *View) Attach(sub Subscriber) {
	v.Detach()
	off := sub.On(realtime.KindQueueUpdate, func(e realtime.Event) {
		if ev, ok := e.(realtime.QueueUpdate); ok {
			v.Apply(ev)
		}
	})
	v.mu.Lock()
	v.offs = []func(){off}
	v.mu.Unlock()
}

func (v *View) Detach() {
	v.mu.Lock()
	offs := v.offs
	v.offs = nil
	v.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

// Refresh fetches the queue of businessID and records its state.
func (v *View) Refresh(ctx context.Context, businessID string) (State, error) {
	q, err := v.src.QueueByBusiness(ctx, businessID)
	if err != nil {
		return "", fmt.Errorf("fetch queue for business %s: %w", businessID, err)
	}
	state := StateOf(q)
	v.mu.Lock()
	defer v.mu.Unlock()
	if q != nil && q.QueueID != "" {
		v.business[q.QueueID] = businessID
	}
	v.states[businessID] = state
	return state, nil
}

// Apply records a queue-update event carrying a status. Events that name
// neither a known queue nor a business are ignored.
func (v *View) Apply(e realtime.QueueUpdate) bool {
	state, ok := Parse(e.Status)
	if !ok {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	businessID := e.BusinessID.String()
	if businessID == "" {
		businessID = v.business[e.QueueID.String()]
	}
	if businessID == "" {
		return false
	}
	if e.QueueID != "" {
		v.business[e.QueueID.String()] = businessID
	}
	if prev, seen := v.states[businessID]; seen && prev != state && !ValidTransition(prev, state) {
		log.Printf("queue transition not expected business=%s from=%s to=%s", businessID, prev, state)
	}
	v.states[businessID] = state
	return true
}

// State returns the last observed state; businesses never observed are
// reported as Unavailable with ok=false.
func (v *View) State(businessID string) (State, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	state, ok := v.states[businessID]
	if !ok {
		return Unavailable, false
	}
	return state, true
}
