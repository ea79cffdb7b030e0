package rooms

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"qms/booking-client/internal/realtime"
)

// Emitter is the slice of the connection manager the controller needs.
type Emitter interface {
	Emit(ctx context.Context, msg realtime.Message) error
	Connected() bool
	On(kind realtime.Kind, fn realtime.HandlerFunc) func()
}

type room struct {
	kind realtime.Kind
	id   string
}

func (r room) message() realtime.Message {
	switch r.kind {
	case realtime.KindJoinBusiness:
		return realtime.Message{Type: r.kind, Payload: businessPayload{BusinessID: r.id}}
	case realtime.KindJoinUserRoom:
		return realtime.Message{Type: r.kind, Payload: userPayload{UserID: r.id}}
	default:
		return realtime.Message{Type: r.kind, Payload: queuePayload{QueueID: r.id}}
	}
}

type businessPayload struct {
	BusinessID string `json:"businessId"`
}

type queuePayload struct {
	QueueID string `json:"queueId"`
}

type userPayload struct {
	UserID string `json:"userId"`
}

type callNextPayload struct {
	TicketID   string `json:"ticketId"`
	BusinessID string `json:"businessId"`
}

type opKind int

const (
	opJoin opKind = iota
	opLeave
	opSend
)

type op struct {
	kind opKind
	room room
	msg  realtime.Message
}

// Controller keeps the client's room membership in sync with the server.
// Calls made while disconnected are queued and replayed in order on the
// next connect; after a reconnect every remembered room is joined again.
// A join already sent on the current transport session is not repeated.
type Controller struct {
	emitter     Emitter
	emitTimeout time.Duration

	mu        sync.Mutex
	connected bool
	desired   []room
	session   map[room]bool
	pending   []op
	offs      []func()
}

func New(emitter Emitter) *Controller {
	c := &Controller{
		emitter:     emitter,
		emitTimeout: 10 * time.Second,
		connected:   emitter.Connected(),
		session:     make(map[room]bool),
	}
	c.offs = append(c.offs,
		emitter.On(realtime.KindConnect, func(realtime.Event) { c.handleConnect() }),
		emitter.On(realtime.KindDisconnect, func(realtime.Event) { c.handleDisconnect() }),
	)
	return c
}

// Close detaches the controller from the connection's lifecycle events.
func (c *Controller) Close() {
	c.mu.Lock()
	offs := c.offs
	c.offs = nil
	c.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

func (c *Controller) JoinBusiness(ctx context.Context, businessID string) {
	c.join(ctx, room{kind: realtime.KindJoinBusiness, id: businessID})
}

func (c *Controller) JoinQueue(ctx context.Context, queueID string) {
	c.join(ctx, room{kind: realtime.KindJoinQueue, id: queueID})
}

func (c *Controller) RegisterUser(ctx context.Context, userID string) {
	c.join(ctx, room{kind: realtime.KindJoinUserRoom, id: userID})
}

func (c *Controller) LeaveQueue(ctx context.Context, queueID string) {
	joined := room{kind: realtime.KindJoinQueue, id: queueID}
	msg := realtime.Message{Type: realtime.KindLeaveQueue, Payload: queuePayload{QueueID: queueID}}

	c.mu.Lock()
	c.desired = removeRoom(c.desired, joined)
	if !c.connected {
		c.pending = append(c.pending, op{kind: opLeave, room: joined, msg: msg})
		c.mu.Unlock()
		return
	}
	delete(c.session, joined)
	c.mu.Unlock()
	c.emit(ctx, op{kind: opLeave, room: joined, msg: msg})
}

// CallNext asks the server to call ticketID at businessID's counter.
func (c *Controller) CallNext(ctx context.Context, ticketID, businessID string) {
	msg := realtime.Message{Type: realtime.KindCallNext, Payload: callNextPayload{TicketID: ticketID, BusinessID: businessID}}
	c.mu.Lock()
	if !c.connected {
		c.pending = append(c.pending, op{kind: opSend, msg: msg})
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.emit(ctx, op{kind: opSend, msg: msg})
}

// Rooms returns the remembered membership in join order.
func (c *Controller) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.desired))
	for _, r := range c.desired {
		out = append(out, string(r.kind)+":"+r.id)
	}
	return out
}

func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Controller) join(ctx context.Context, r room) {
	c.mu.Lock()
	if !containsRoom(c.desired, r) {
		c.desired = append(c.desired, r)
	}
	if !c.connected {
		c.pending = append(c.pending, op{kind: opJoin, room: r, msg: r.message()})
		c.mu.Unlock()
		return
	}
	if c.session[r] {
		c.mu.Unlock()
		return
	}
	c.session[r] = true
	c.mu.Unlock()
	c.emit(ctx, op{kind: opJoin, room: r, msg: r.message()})
}

func (c *Controller) emit(ctx context.Context, o op) {
	err := c.emitter.Emit(ctx, o.msg)
	if err == nil {
		return
	}
	if errors.Is(err, realtime.ErrNotConnected) {
		c.mu.Lock()
		if o.kind == opJoin {
			delete(c.session, o.room)
		}
		c.pending = append(c.pending, o)
		c.mu.Unlock()
		return
	}
	log.Printf("rooms emit %s error: %v", o.msg.Type, err)
}

func (c *Controller) handleConnect() {
	c.mu.Lock()
	c.connected = true
	c.session = make(map[room]bool)
	var batch []op
	for _, r := range c.desired {
		c.session[r] = true
		batch = append(batch, op{kind: opJoin, room: r, msg: r.message()})
	}
	for _, o := range c.pending {
		switch o.kind {
		case opJoin:
			if c.session[o.room] {
				continue
			}
			c.session[o.room] = true
		case opLeave:
			delete(c.session, o.room)
		}
		batch = append(batch, o)
	}
	c.pending = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.emitTimeout)
	defer cancel()
	for _, o := range batch {
		c.emit(ctx, o)
	}
}

func (c *Controller) handleDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.session = make(map[room]bool)
}

func containsRoom(list []room, r room) bool {
	for _, item := range list {
		if item == r {
			return true
		}
	}
	return false
}

func removeRoom(list []room, r room) []room {
	out := list[:0]
	for _, item := range list {
		if item != r {
			out = append(out, item)
		}
	}
	return out
}
