package lifecycle

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
)

// ServiceHistory records a completed visit in the log stream picked up by the history
// pipeline. Loyalty accrual consumes the completed event from Kafka instead.
func ServiceHistory(logger *slog.Logger) Effect {
	return Effect{
		Name: "service_history",
		On:   model.StatusCompleted,
		Run: func(ctx context.Context, c Change) error {
			a := c.Appointment
			logger.InfoContext(ctx, "service history",
				"appointment_id", a.ID,
				"organization_id", a.OrganizationID,
				"client_id", a.ClientID,
				"collaborator_id", a.CollaboratorID,
				"service_id", a.ServiceID,
				"date", model.FormatDate(a.ScheduledDate),
				"price", a.Price,
			)
			return nil
		},
	}
}
