package outbox

// Event types published by the scheduling service.
const (
	EventAppointmentBooked    = "scheduling.appointment.booked.v1"
	EventAppointmentCancelled = "scheduling.appointment.cancelled.v1"
	EventAppointmentCompleted = "scheduling.appointment.completed.v1"
	EventAppointmentNoShow    = "scheduling.appointment.no_show.v1"
	EventReminderRequested    = "scheduling.reminder.requested.v1"
)

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
