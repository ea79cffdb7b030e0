package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected     = errors.New("realtime: not connected")
	ErrUnknownTransport = errors.New("realtime: unknown transport")
	ErrClosed           = errors.New("realtime: manager closed")
)

// Transport opens one physical connection to the realtime endpoint.
type Transport interface {
	Name() string
	Dial(ctx context.Context, baseURL, token string) (Conn, error)
}

// Conn is one open transport session. Recv blocks until the next batch of
// messages; it returns a *CloseError when the server closes the session.
type Conn interface {
	Recv(ctx context.Context) ([]string, error)
	Send(ctx context.Context, messages ...string) error
	Close() error
}

type TransportOptions struct {
	// HTTPClient carries xhr-polling requests. It must not set a Timeout
	// shorter than the server heartbeat since every poll is held open.
	HTTPClient       *http.Client
	Dialer           *websocket.Dialer
	HandshakeTimeout time.Duration
}

// TransportsByName resolves configured transport names in order.
func TransportsByName(names []string, opts TransportOptions) ([]Transport, error) {
	transports := make([]Transport, 0, len(names))
	for _, name := range names {
		switch name {
		case "websocket":
			transports = append(transports, NewWebsocketTransport(opts))
		case "xhr-polling", "polling":
			transports = append(transports, NewPollingTransport(opts))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
		}
	}
	return transports, nil
}
