package ticket

import (
	"errors"
	"fmt"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrInvalidState   = errors.New("invalid ticket state")
	ErrTerminal       = errors.New("ticket already finished")
	ErrForbidden      = errors.New("action not permitted")
	ErrUnknownAction  = errors.New("unknown ticket action")
)

// ValidationError reports a ticket action refused before reaching the server.
type ValidationError struct {
	TicketID string
	Action   string
	Status   string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("%s ticket %s: %v", e.Action, e.TicketID, e.Err)
	}
	return fmt.Sprintf("%s ticket %s (status %s): %v", e.Action, e.TicketID, e.Status, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
