package realtime

import (
	"context"
	"errors"
	"sync"
)

type fakeTransport struct {
	name      string
	failFirst int
	alwaysErr error

	mu    sync.Mutex
	dials int
	conns chan *fakeConn
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{name: name, conns: make(chan *fakeConn, 16)}
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) Dial(ctx context.Context, baseURL, token string) (Conn, error) {
	t.mu.Lock()
	t.dials++
	n := t.dials
	t.mu.Unlock()
	if t.alwaysErr != nil {
		return nil, t.alwaysErr
	}
	if n <= t.failFirst {
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	t.conns <- conn
	return conn, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

type fakeConn struct {
	inbox     chan []string
	drop      chan error
	sent      chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan []string, 16),
		drop:   make(chan error, 1),
		sent:   make(chan string, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Recv(ctx context.Context) ([]string, error) {
	select {
	case msgs := <-c.inbox:
		return msgs, nil
	case err := <-c.drop:
		return nil, err
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Send(ctx context.Context, messages ...string) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	for _, msg := range messages {
		c.sent <- msg
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
