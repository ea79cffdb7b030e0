package realtime

import (
	"log"
	"sync"
)

type HandlerFunc func(Event)

type handler struct {
	id int
	fn HandlerFunc
}

// Registry maps event kinds to handlers. Subscriptions belong to the
// registry rather than a transport connection, so reconnects never add or
// drop handlers.
type Registry struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Kind][]handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind][]handler)}
}

// On registers fn for kind and returns a func that removes it again.
func (r *Registry) On(kind Kind, fn HandlerFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.handlers[kind] = append(r.handlers[kind], handler{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { r.off(kind, id) })
	}
}

func (r *Registry) off(kind Kind, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.handlers[kind]
	for i, h := range list {
		if h.id == id {
			r.handlers[kind] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(r.handlers[kind]) == 0 {
		delete(r.handlers, kind)
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, list := range r.handlers {
		total += len(list)
	}
	return total
}

func (r *Registry) CountFor(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}

// Dispatch runs every handler registered for the event's kind, in
// registration order, on the calling goroutine. A panicking handler is
// logged and does not stop the others.
func (r *Registry) Dispatch(event Event) {
	r.mu.RLock()
	list := append([]handler(nil), r.handlers[event.Kind()]...)
	r.mu.RUnlock()
	for _, h := range list {
		invoke(h, event)
	}
}

func invoke(h handler, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("realtime handler panic kind=%s handler=%d: %v", event.Kind(), h.id, rec)
		}
	}()
	h.fn(event)
}
