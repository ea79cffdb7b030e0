package realtime

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

type frameType byte

const (
	frameOpen      frameType = 'o'
	frameHeartbeat frameType = 'h'
	frameMessages  frameType = 'a'
	frameClose     frameType = 'c'
)

type frame struct {
	typ      frameType
	messages []string
	code     int
	reason   string
}

func parseFrame(raw string) (frame, error) {
	raw = strings.TrimRight(raw, "\n")
	if raw == "" {
		return frame{}, fmt.Errorf("empty frame")
	}
	f := frame{typ: frameType(raw[0])}
	body := raw[1:]
	switch f.typ {
	case frameOpen, frameHeartbeat:
		return f, nil
	case frameMessages:
		if err := json.Unmarshal([]byte(body), &f.messages); err != nil {
			return frame{}, fmt.Errorf("message frame: %w", err)
		}
		return f, nil
	case frameClose:
		var parts []json.RawMessage
		if err := json.Unmarshal([]byte(body), &parts); err != nil {
			return frame{}, fmt.Errorf("close frame: %w", err)
		}
		if len(parts) > 0 {
			_ = json.Unmarshal(parts[0], &f.code)
		}
		if len(parts) > 1 {
			_ = json.Unmarshal(parts[1], &f.reason)
		}
		return f, nil
	default:
		return frame{}, fmt.Errorf("unknown frame type %q", raw[0])
	}
}

// CloseError reports a close frame sent by the server.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("closed by server: %d %s", e.Code, e.Reason)
}

// sessionURL builds <base>/<server>/<session>/<suffix> carrying the session
// token as the session_id query parameter.
func sessionURL(base, serverID, sessionID, suffix, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	u.Path = u.Path + "/" + serverID + "/" + sessionID + "/" + suffix
	if token != "" {
		q := u.Query()
		q.Set("session_id", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func newServerID() string {
	return fmt.Sprintf("%03d", rand.IntN(1000))
}

func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
