package models

type Business struct {
	BusinessID     string   `json:"id"`
	Name           string   `json:"name"`
	IsOpen         bool     `json:"isOpen"`
	PaymentMethods []string `json:"paymentMethods,omitempty"`
}

func (b Business) AcceptsPayment(method string) bool {
	for _, m := range b.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

type Queue struct {
	QueueID    string `json:"id"`
	BusinessID string `json:"businessId"`
	Status     string `json:"status"`
}

const (
	QueueActive = "active"
	QueuePaused = "paused"
	QueueClosed = "closed"
)

// BookingLimit is the subscription quota answer for one business. Usage and
// Quota are billing internals and stay inside the booking package.
type BookingLimit struct {
	Allowed    bool   `json:"allowed"`
	ReasonCode string `json:"reasonCode,omitempty"`
	Usage      int    `json:"usage"`
	Quota      int    `json:"quota"`
}
