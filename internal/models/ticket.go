package models

import "time"

type Ticket struct {
	TicketID      string    `json:"id"`
	Number        string    `json:"number"`
	Status        string    `json:"status"`
	Position      int       `json:"position"`
	QueueID       string    `json:"queueId,omitempty"`
	BusinessID    string    `json:"businessId,omitempty"`
	PaymentStatus string    `json:"paymentStatus,omitempty"`
	Priority      int       `json:"priority"`
	CreatedAt     time.Time `json:"createdAt"`
}

const (
	StatusPendingPayment = "pending_payment"
	StatusWaiting        = "waiting"
	StatusCalled         = "called"
	StatusInProgress     = "in-progress"
	StatusServed         = "served"
	StatusDone           = "done"
	StatusEnded          = "ended"
	StatusCancelled      = "cancelled"
	StatusNoShow         = "no-show"
)

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
	PaymentCash    = "cash"
)

// CreateTicketRequest is the body of a booking request.
type CreateTicketRequest struct {
	BusinessID    string `json:"businessId"`
	QueueID       string `json:"queueId,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	Priority      int    `json:"priority,omitempty"`
}
