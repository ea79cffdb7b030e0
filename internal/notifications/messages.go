package notifications

import (
	"strconv"
	"strings"

	"qms/booking-client/internal/realtime"
)

var defaultTemplates = map[realtime.Kind]string{
	realtime.KindTicketCreated:       "Ticket #{number} created.",
	realtime.KindTicketUpdated:       "Ticket #{number} is now {status}.",
	realtime.KindQueueUpdate:         "{message}",
	realtime.KindPositionUpdate:      "You are number {position} in line, about {estimated_wait} min to go.",
	realtime.KindYourTurnCalled:      "{message}",
	realtime.KindPaymentUpdate:       "{message}",
	realtime.KindTicketBooked:        "{message}",
	realtime.KindAppointmentReminder: "Your appointment starts in {time_until}.",
}

// fallbackTemplates cover events whose free-text message came through empty.
var fallbackTemplates = map[realtime.Kind]string{
	realtime.KindQueueUpdate:    "The queue was updated.",
	realtime.KindYourTurnCalled: "It's your turn!",
	realtime.KindPaymentUpdate:  "Payment status updated.",
	realtime.KindTicketBooked:   "Ticket {ticket_ref} booked.",
}

func renderMessage(event realtime.Event) string {
	vars := variables(event)
	template := defaultTemplates[event.Kind()]
	if template == "{message}" && vars["{message}"] == "" {
		template = fallbackTemplates[event.Kind()]
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, key, value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func variables(event realtime.Event) map[string]string {
	switch e := event.(type) {
	case realtime.TicketCreated:
		return map[string]string{"{number}": e.Number.String()}
	case realtime.TicketUpdated:
		return map[string]string{"{number}": e.Number.String(), "{status}": strings.ReplaceAll(e.Status, "_", " ")}
	case realtime.QueueUpdate:
		return map[string]string{"{message}": e.Message}
	case realtime.PositionUpdate:
		return map[string]string{"{position}": strconv.Itoa(e.Position), "{estimated_wait}": strconv.Itoa(e.EstimatedWait)}
	case realtime.YourTurnCalled:
		return map[string]string{"{message}": e.Message}
	case realtime.PaymentUpdate:
		return map[string]string{"{message}": e.Message}
	case realtime.TicketBooked:
		return map[string]string{"{message}": e.Message, "{ticket_ref}": e.TicketRef.String()}
	case realtime.AppointmentReminder:
		return map[string]string{"{time_until}": e.TimeUntil}
	}
	return map[string]string{}
}
