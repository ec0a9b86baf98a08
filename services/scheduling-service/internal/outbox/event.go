package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (one topic per event type).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventAppointmentRequested = "scheduling.appointment.requested.v1"
	EventAppointmentConfirmed = "scheduling.appointment.confirmed.v1"
	EventAppointmentCompleted = "scheduling.appointment.completed.v1"
	EventAppointmentCancelled = "scheduling.appointment.cancelled.v1"
)

// EventTypeForStatus names the event emitted when an appointment enters status.
func EventTypeForStatus(s model.Status) string {
	switch s {
	case model.StatusConfirmed:
		return EventAppointmentConfirmed
	case model.StatusCompleted:
		return EventAppointmentCompleted
	case model.StatusCancelled:
		return EventAppointmentCancelled
	default:
		return EventAppointmentRequested
	}
}

// AppointmentEvent builds the event for appt having entered its current status at occurredAt.
func AppointmentEvent(appt model.Appointment, occurredAt time.Time) (Event, error) {
	payload, err := json.Marshal(map[string]any{
		"appointment_id":   appt.ID,
		"organization_id":  appt.OrganizationID,
		"collaborator_id":  appt.CollaboratorID,
		"service_id":       appt.ServiceID,
		"client_id":        appt.ClientID,
		"date":             model.FormatDate(appt.ScheduledDate),
		"time":             model.FormatClock(appt.StartMinute),
		"duration_minutes": appt.DurationMinutes,
		"status":           appt.Status,
		"price":            appt.Price,
		"occurred_at":      occurredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     EventTypeForStatus(appt.Status),
		Payload:       payload,
	}, nil
}
