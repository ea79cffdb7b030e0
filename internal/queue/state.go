package queue

import "qms/booking-client/internal/models"

type State string

const (
	Active State = models.QueueActive
	Paused State = models.QueuePaused
	Closed State = models.QueueClosed
	// Unavailable means the business has no queue record at all.
	Unavailable State = "unavailable"
)

var transitionMap = map[State][]State{
	Active:      {Paused, Closed},
	Paused:      {Active, Closed},
	Closed:      {Active},
	Unavailable: {Active, Paused, Closed},
}

var messages = map[State]string{
	Active:      "The queue is open for bookings.",
	Paused:      "The queue is paused. Tickets already issued are still being served.",
	Closed:      "The queue is closed for now.",
	Unavailable: "This business has not set up a queue yet.",
}

// Parse maps a server status onto a State.
func Parse(status string) (State, bool) {
	switch s := State(status); s {
	case Active, Paused, Closed:
		return s, true
	}
	return "", false
}

// StateOf returns the state of q; a missing record is Unavailable. A status
// this client does not know is treated as Closed.
func StateOf(q *models.Queue) State {
	if q == nil {
		return Unavailable
	}
	if s, ok := Parse(q.Status); ok {
		return s
	}
	return Closed
}

// Bookable reports whether new tickets may be booked.
func (s State) Bookable() bool { return s == Active }

// Processing reports whether tickets already issued keep moving.
func (s State) Processing() bool { return s == Active || s == Paused }

func (s State) Message() string {
	if msg, ok := messages[s]; ok {
		return msg
	}
	return messages[Closed]
}

func ValidTransition(from, to State) bool {
	for _, allowed := range transitionMap[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
