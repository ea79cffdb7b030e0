package ticket

import "qms/booking-client/internal/models"

type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorBusiness Actor = "business"
	// ActorSystem stands for server-side signals such as payment results.
	ActorSystem Actor = "system"
)

const (
	ActionConfirmPayment = "confirm_payment"
	ActionAbandonPayment = "abandon_payment"
	ActionCall           = "call"
	ActionStart          = "start"
	ActionServe          = "serve"
	ActionCancel         = "cancel"
	ActionNoShow         = "no_show"
)

var transitionMap = map[string][]string{
	ActionConfirmPayment: {models.StatusPendingPayment},
	ActionAbandonPayment: {models.StatusPendingPayment},
	ActionCall:           {models.StatusWaiting},
	ActionStart:          {models.StatusCalled},
	ActionServe:          {models.StatusCalled, models.StatusInProgress},
	ActionCancel:         {models.StatusWaiting},
	ActionNoShow:         {models.StatusCalled},
}

var targetStatus = map[string]string{
	ActionConfirmPayment: models.StatusWaiting,
	ActionAbandonPayment: models.StatusCancelled,
	ActionCall:           models.StatusCalled,
	ActionStart:          models.StatusInProgress,
	ActionServe:          models.StatusServed,
	ActionCancel:         models.StatusCancelled,
	ActionNoShow:         models.StatusNoShow,
}

var actorActions = map[Actor]map[string]bool{
	ActorCustomer: {ActionCancel: true, ActionAbandonPayment: true},
	ActorBusiness: {ActionCall: true, ActionStart: true, ActionServe: true, ActionNoShow: true},
	ActorSystem:   {ActionConfirmPayment: true, ActionAbandonPayment: true},
}

var cashEquivalent = map[string]bool{
	models.PaymentCash: true,
	"counter":          true,
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no action may leave status.
func IsTerminal(status string) bool {
	switch status {
	case models.StatusServed, models.StatusDone, models.StatusEnded, models.StatusCancelled, models.StatusNoShow:
		return true
	}
	return false
}

// Next returns the status action moves a ticket to, or why it cannot.
func Next(status, action string, actor Actor) (string, error) {
	if IsTerminal(status) {
		return "", ErrTerminal
	}
	target, ok := targetStatus[action]
	if !ok {
		return "", ErrUnknownAction
	}
	if !actorActions[actor][action] {
		return "", ErrForbidden
	}
	if !ValidTransition(action, status) {
		return "", ErrInvalidState
	}
	return target, nil
}

// InitialStatus is the status a new booking starts in. Cash-equivalent
// payment skips the pending_payment step.
func InitialStatus(paymentMethod string) string {
	if paymentMethod == "" || cashEquivalent[paymentMethod] {
		return models.StatusWaiting
	}
	return models.StatusPendingPayment
}
