package realtime

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

var (
	eventsTotal     = expvar.NewInt("realtime_events_total")
	eventsDropped   = expvar.NewInt("realtime_events_dropped_total")
	reconnectsTotal = expvar.NewInt("realtime_reconnects_total")
)

type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateReconnecting State = "reconnecting"
)

type Options struct {
	URL               string
	Token             string
	Transports        []Transport
	Reconnect         bool
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Registry          *Registry
}

// Connection is the single logical connection of a client session. It
// outlives the transport sessions opened underneath it by reconnects.
type Connection struct {
	ID        string
	CreatedAt time.Time

	m *Manager
}

func (c *Connection) State() State { return c.m.State() }

func (c *Connection) Connected() bool { return c.m.Connected() }

func (c *Connection) Transport() string { return c.m.TransportName() }

// Manager owns the session connection. One goroutine dials, reads and
// dispatches, so every handler runs serially in transport delivery order.
type Manager struct {
	opts     Options
	registry *Registry

	mu            sync.RWMutex
	conn          *Connection
	transport     Conn
	transportName string
	state         State
	closed        bool
	cancel        context.CancelFunc
	done          chan struct{}
}

func NewManager(opts Options) *Manager {
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	if opts.ReconnectAttempts < 0 {
		opts.ReconnectAttempts = 0
	}
	return &Manager{
		opts:     opts,
		registry: registry,
		state:    StateDisconnected,
	}
}

func (m *Manager) Registry() *Registry { return m.registry }

// On is shorthand for Registry().On.
func (m *Manager) On(kind Kind, fn HandlerFunc) func() {
	return m.registry.On(kind, fn)
}

// EnsureConnection returns the session connection, creating and starting it
// on first use. It never fails: connectivity problems surface only through
// State and the lifecycle events. After Close it returns the disposed
// connection (nil if none was ever created) without reconnecting.
func (m *Manager) EnsureConnection() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil || m.closed {
		return m.conn
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.conn = &Connection{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), m: m}
	m.cancel = cancel
	m.done = make(chan struct{})
	m.state = StateConnecting
	go m.run(ctx)
	return m.conn
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

func (m *Manager) TransportName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transportName
}

// Emit sends one message over the current transport session.
func (m *Manager) Emit(ctx context.Context, msg Message) error {
	m.mu.RLock()
	conn := m.transport
	m.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return conn.Send(ctx, string(data))
}

// Close stops the connection loop and waits for it to exit. It must not be
// called from an event handler.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel, conn, done := m.cancel, m.transport, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	m.mu.Lock()
	m.state = StateDisconnected
	m.transport = nil
	m.transportName = ""
	m.mu.Unlock()
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	tries := 1
	if m.opts.Reconnect {
		tries += m.opts.ReconnectAttempts
	}
	conn, name, err := m.dial(ctx, tries, false)
	reconnecting := false
	for {
		if err != nil {
			m.setState(StateDisconnected)
			if ctx.Err() == nil {
				log.Printf("realtime connect gave up url=%s: %v", m.opts.URL, err)
			}
			return
		}
		if !m.attach(conn, name) {
			_ = conn.Close()
			return
		}
		log.Printf("realtime connected transport=%s", name)
		m.registry.Dispatch(Lifecycle{Type: KindConnect, Transport: name})
		if reconnecting {
			reconnectsTotal.Add(1)
			m.registry.Dispatch(Lifecycle{Type: KindReconnect, Transport: name})
		}

		readErr := m.read(ctx, conn)
		_ = conn.Close()
		m.detach()
		if ctx.Err() != nil {
			m.registry.Dispatch(Lifecycle{Type: KindDisconnect, Transport: name})
			return
		}
		log.Printf("realtime disconnected transport=%s: %v", name, readErr)
		m.registry.Dispatch(Lifecycle{Type: KindDisconnect, Transport: name, Err: readErr})

		if !m.opts.Reconnect || m.opts.ReconnectAttempts == 0 {
			return
		}
		m.setState(StateReconnecting)
		reconnecting = true
		conn, name, err = m.dial(ctx, m.opts.ReconnectAttempts, true)
	}
}

type dialResult struct {
	conn Conn
	name string
}

// dial tries every transport in order, retrying the whole sequence up to
// tries times with a constant delay between rounds.
func (m *Manager) dial(ctx context.Context, tries int, waitFirst bool) (Conn, string, error) {
	if waitFirst && m.opts.ReconnectDelay > 0 {
		timer := time.NewTimer(m.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, "", ctx.Err()
		case <-timer.C:
		}
	}
	attempt := 0
	res, err := backoff.Retry(ctx, func() (dialResult, error) {
		attempt++
		return m.dialOnce(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.opts.ReconnectDelay)),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("realtime dial failed attempt=%d retry_in=%s: %v", attempt, next, err)
		}),
	)
	if err != nil {
		return nil, "", err
	}
	return res.conn, res.name, nil
}

func (m *Manager) dialOnce(ctx context.Context) (dialResult, error) {
	if len(m.opts.Transports) == 0 {
		return dialResult{}, backoff.Permanent(errors.New("realtime: no transports configured"))
	}
	var errs []error
	for _, t := range m.opts.Transports {
		conn, err := t.Dial(ctx, m.opts.URL, m.opts.Token)
		if err == nil {
			return dialResult{conn: conn, name: t.Name()}, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return dialResult{}, errors.Join(errs...)
}

func (m *Manager) read(ctx context.Context, conn Conn) error {
	for {
		messages, err := conn.Recv(ctx)
		if err != nil {
			return err
		}
		for _, raw := range messages {
			inbound, err := ParseEvent([]byte(raw))
			if err != nil {
				eventsDropped.Add(1)
				log.Printf("realtime drop message: %v", err)
				continue
			}
			eventsTotal.Add(1)
			m.registry.Dispatch(inbound.Event)
		}
	}
}

func (m *Manager) attach(conn Conn, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.transport = conn
	m.transportName = name
	m.state = StateConnected
	return true
}

func (m *Manager) detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transport = nil
	m.state = StateDisconnected
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}
