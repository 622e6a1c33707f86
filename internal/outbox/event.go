package outbox

// Event types emitted by the booking state machine and the sweep worker. The
// Kafka topic name equals the event type.
const (
	EventBookingConfirmed = "booking.confirmed.v1"
	EventBookingCancelled = "booking.cancelled.v1"
	EventBookingUpdated   = "booking.updated.v1"
	EventReminderDue      = "booking.reminder.due.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
