package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type WebsocketTransport struct {
	dialer *websocket.Dialer
}

func NewWebsocketTransport(opts TransportOptions) *WebsocketTransport {
	dialer := opts.Dialer
	if dialer == nil {
		timeout := opts.HandshakeTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		}
	}
	return &WebsocketTransport{dialer: dialer}
}

func (t *WebsocketTransport) Name() string { return "websocket" }

func (t *WebsocketTransport) Dial(ctx context.Context, baseURL, token string) (Conn, error) {
	target, err := sessionURL(baseURL, newServerID(), newSessionID(), "websocket", token)
	if err != nil {
		return nil, err
	}
	target = websocketScheme(target)

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, _, err := t.dialer.DialContext(ctx, target, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn := &websocketConn{ws: ws}
	f, err := conn.next()
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	if f.typ != frameOpen {
		_ = ws.Close()
		if f.typ == frameClose {
			return nil, &CloseError{Code: f.code, Reason: f.reason}
		}
		return nil, fmt.Errorf("websocket: expected open frame, got %q", f.typ)
	}
	return conn, nil
}

func websocketScheme(target string) string {
	switch {
	case strings.HasPrefix(target, "https://"):
		return "wss://" + strings.TrimPrefix(target, "https://")
	case strings.HasPrefix(target, "http://"):
		return "ws://" + strings.TrimPrefix(target, "http://")
	}
	return target
}

type websocketConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *websocketConn) next() (frame, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return frame{}, err
	}
	return parseFrame(string(data))
}

// Recv ignores ctx while blocked in a read; Close unblocks it.
func (c *websocketConn) Recv(ctx context.Context) ([]string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := c.next()
		if err != nil {
			return nil, err
		}
		switch f.typ {
		case frameMessages:
			return f.messages, nil
		case frameClose:
			return nil, &CloseError{Code: f.code, Reason: f.reason}
		}
	}
}

func (c *websocketConn) Send(ctx context.Context, messages ...string) error {
	body, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
		defer c.ws.SetWriteDeadline(time.Time{})
	}
	return c.ws.WriteMessage(websocket.TextMessage, body)
}

func (c *websocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}
