package booking

import (
	"context"
	"log"

	"qms/booking-client/internal/models"
	"qms/booking-client/internal/queue"
)

type Reason string

const (
	ReasonClosed      Reason = "closed"
	ReasonBusy        Reason = "busy"
	ReasonFullyBooked Reason = "fully booked"
)

// Decision is the answer to "can this customer book right now?". It never
// carries quota or usage figures.
type Decision struct {
	Allowed    bool
	Reason     Reason
	QueueState queue.State
}

// Message is the customer-facing explanation of a denial.
func (d Decision) Message() string {
	switch d.Reason {
	case ReasonClosed:
		return "This business is closed right now."
	case ReasonBusy:
		return d.QueueState.Message()
	case ReasonFullyBooked:
		return "This business is fully booked. Please try again later."
	}
	return ""
}

type Businesses interface {
	GetBusiness(ctx context.Context, businessID string) (models.Business, error)
}

type Limits interface {
	BookingLimit(ctx context.Context, businessID string) (models.BookingLimit, error)
}

// Evaluator is stateless: every call queries all three collaborators anew.
type Evaluator struct {
	businesses Businesses
	queues     queue.Source
	limits     Limits
}

func NewEvaluator(businesses Businesses, queues queue.Source, limits Limits) *Evaluator {
	return &Evaluator{businesses: businesses, queues: queues, limits: limits}
}

// Evaluate checks, in order and stopping at the first failure, that the
// business is open, its queue is active and its booking quota allows one
// more ticket.
func (e *Evaluator) Evaluate(ctx context.Context, businessID string) Decision {
	business, err := e.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		log.Printf("eligibility business lookup error business=%s: %v", businessID, err)
		return Decision{Reason: ReasonClosed}
	}
	if !business.IsOpen {
		return Decision{Reason: ReasonClosed}
	}

	q, err := e.queues.QueueByBusiness(ctx, businessID)
	if err != nil {
		log.Printf("eligibility queue lookup error business=%s: %v", businessID, err)
		return Decision{Reason: ReasonBusy, QueueState: queue.Unavailable}
	}
	state := queue.StateOf(q)
	if !state.Bookable() {
		return Decision{Reason: ReasonBusy, QueueState: state}
	}

	limit, err := e.limits.BookingLimit(ctx, businessID)
	if err != nil {
		// ticket creation checks the quota again
		log.Printf("eligibility booking limit error business=%s: %v", businessID, err)
		return Decision{Allowed: true, QueueState: state}
	}
	if !limit.Allowed {
		return Decision{Reason: ReasonFullyBooked, QueueState: state}
	}
	return Decision{Allowed: true, QueueState: state}
}
