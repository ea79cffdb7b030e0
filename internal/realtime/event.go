package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

type Kind string

const (
	KindConnect    Kind = "connect"
	KindDisconnect Kind = "disconnect"
	KindReconnect  Kind = "reconnect"

	KindTicketCreated       Kind = "ticket-created"
	KindTicketUpdated       Kind = "ticket-updated"
	KindQueueUpdate         Kind = "queue-update"
	KindPositionUpdate      Kind = "position-update"
	KindYourTurnCalled      Kind = "your-turn-called"
	KindPaymentUpdate       Kind = "payment-update"
	KindTicketBooked        Kind = "ticket-booked"
	KindAppointmentReminder Kind = "appointment-reminder"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Event is one inbound signal. Each kind has its own payload struct so
// handlers switch on the concrete type instead of probing maps.
type Event interface {
	Kind() Kind
}

// Ref is an identifier the server may encode as a JSON string or number.
type Ref string

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("ref: %s is neither string nor number", data)
	}
	*r = Ref(data)
	return nil
}

func (r Ref) String() string { return string(r) }

// Lifecycle is dispatched for connect, disconnect and reconnect.
type Lifecycle struct {
	Type      Kind
	Transport string
	Err       error
}

func (e Lifecycle) Kind() Kind { return e.Type }

type TicketCreated struct {
	Number   Ref `json:"number"`
	TicketID Ref `json:"ticketId,omitempty"`
}

func (TicketCreated) Kind() Kind { return KindTicketCreated }

type TicketUpdated struct {
	Number   Ref    `json:"number"`
	Status   string `json:"status"`
	TicketID Ref    `json:"ticketId,omitempty"`
}

func (TicketUpdated) Kind() Kind { return KindTicketUpdated }

type QueueUpdate struct {
	Message    string `json:"message"`
	QueueID    Ref    `json:"queueId,omitempty"`
	BusinessID Ref    `json:"businessId,omitempty"`
	Status     string `json:"status,omitempty"`
}

func (QueueUpdate) Kind() Kind { return KindQueueUpdate }

type PositionUpdate struct {
	Position      int `json:"position"`
	EstimatedWait int `json:"estimatedWait"`
	TicketID      Ref `json:"ticketId,omitempty"`
}

func (PositionUpdate) Kind() Kind { return KindPositionUpdate }

type YourTurnCalled struct {
	Message  string `json:"message"`
	TicketID Ref    `json:"ticketId,omitempty"`
}

func (YourTurnCalled) Kind() Kind { return KindYourTurnCalled }

type PaymentUpdate struct {
	Message  string `json:"message"`
	TicketID Ref    `json:"ticketId,omitempty"`
	Status   string `json:"status,omitempty"`
}

func (PaymentUpdate) Kind() Kind { return KindPaymentUpdate }

type TicketBooked struct {
	TicketRef Ref    `json:"ticketRef"`
	Message   string `json:"message"`
}

func (TicketBooked) Kind() Kind { return KindTicketBooked }

type AppointmentReminder struct {
	TimeUntil string `json:"timeUntil"`
}

func (AppointmentReminder) Kind() Kind { return KindAppointmentReminder }

// Envelope is the wire shape of every message in both directions.
type Envelope struct {
	Type      Kind            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Inbound couples a decoded event with its envelope metadata.
type Inbound struct {
	Event     Event
	Payload   json.RawMessage
	CreatedAt time.Time
}

// ParseEvent decodes one inbound envelope into its typed event.
func ParseEvent(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, err
	}
	var (
		event Event
		err   error
	)
	switch env.Type {
	case KindTicketCreated:
		event, err = decode[TicketCreated](env.Payload)
	case KindTicketUpdated:
		event, err = decode[TicketUpdated](env.Payload)
	case KindQueueUpdate:
		event, err = decode[QueueUpdate](env.Payload)
	case KindPositionUpdate:
		event, err = decode[PositionUpdate](env.Payload)
	case KindYourTurnCalled:
		event, err = decode[YourTurnCalled](env.Payload)
	case KindPaymentUpdate:
		event, err = decode[PaymentUpdate](env.Payload)
	case KindTicketBooked:
		event, err = decode[TicketBooked](env.Payload)
	case KindAppointmentReminder:
		event, err = decode[AppointmentReminder](env.Payload)
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	if err != nil {
		return Inbound{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return Inbound{Event: event, Payload: env.Payload, CreatedAt: env.CreatedAt}, nil
}

func decode[T Event](payload json.RawMessage) (Event, error) {
	var value T
	if len(payload) == 0 {
		return value, nil
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// Message is one outbound emission.
type Message struct {
	Type    Kind
	Payload any
}

const (
	KindJoinBusiness Kind = "join-business"
	KindJoinQueue    Kind = "join-queue"
	KindLeaveQueue   Kind = "leave-queue"
	KindJoinUserRoom Kind = "join-user-room"
	KindCallNext     Kind = "call-next"
)

func (m Message) Encode() ([]byte, error) {
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type    Kind            `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}{Type: m.Type, Payload: payload})
}
