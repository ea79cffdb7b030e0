package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// PollingTransport speaks SockJS xhr-polling: every receive is one POST that
// the server holds open until it has a frame to deliver.
type PollingTransport struct {
	client *http.Client
}

func NewPollingTransport(opts TransportOptions) *PollingTransport {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &PollingTransport{client: client}
}

func (t *PollingTransport) Name() string { return "xhr-polling" }

func (t *PollingTransport) Dial(ctx context.Context, baseURL, token string) (Conn, error) {
	serverID, sessionID := newServerID(), newSessionID()
	recvURL, err := sessionURL(baseURL, serverID, sessionID, "xhr", token)
	if err != nil {
		return nil, err
	}
	sendURL, err := sessionURL(baseURL, serverID, sessionID, "xhr_send", token)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(context.Background())
	conn := &pollingConn{
		client:  t.client,
		recvURL: recvURL,
		sendURL: sendURL,
		token:   token,
		ctx:     connCtx,
		cancel:  cancel,
	}
	f, err := conn.poll(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	if f.typ != frameOpen {
		cancel()
		if f.typ == frameClose {
			return nil, &CloseError{Code: f.code, Reason: f.reason}
		}
		return nil, fmt.Errorf("xhr-polling: expected open frame, got %q", f.typ)
	}
	return conn, nil
}

type pollingConn struct {
	client  *http.Client
	recvURL string
	sendURL string
	token   string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *pollingConn) poll(ctx context.Context) (frame, error) {
	ctx, stop := mergeCancel(ctx, c.ctx)
	defer stop()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recvURL, nil)
	if err != nil {
		return frame{}, err
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return frame{}, fmt.Errorf("xhr-polling: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return frame{}, fmt.Errorf("xhr-polling: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return frame{}, err
	}
	return parseFrame(string(body))
}

func (c *pollingConn) Recv(ctx context.Context) ([]string, error) {
	for {
		f, err := c.poll(ctx)
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

func (c *pollingConn) Send(ctx context.Context, messages ...string) error {
	body, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	ctx, stop := mergeCancel(ctx, c.ctx)
	defer stop()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("xhr-polling send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("xhr-polling send: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *pollingConn) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}

func (c *pollingConn) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// mergeCancel returns a context that is done when either parent is.
func mergeCancel(ctx, other context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
