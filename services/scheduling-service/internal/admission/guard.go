package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/interval"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
)

// Request asks for a pending appointment. An empty CollaboratorID means "no preference".
type Request struct {
	OrganizationID  string
	ClientID        string
	ServiceID       string
	CollaboratorID  string
	Date            time.Time
	StartMinute     int
	DurationMinutes int
	Notes           string
	IdempotencyKey  string
}

type Result struct {
	Appointment model.Appointment
	// Replayed is set when IdempotencyKey matched an earlier admission.
	Replayed bool
}

// Guard admits bookings. The overlap check and the insert share one serializable transaction,
// and the store rejects any overlap that slips past the check.
type Guard struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

func NewGuard(store storage.Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:  store,
		logger: logger,
		now:    time.Now,
		tracer: otel.Tracer("scheduling/admission"),
	}
}

func (g *Guard) Admit(ctx context.Context, req Request) (Result, error) {
	req = normalize(req)
	if err := validate(req); err != nil {
		return Result{}, err
	}

	ctx, span := g.tracer.Start(ctx, "admission.admit", trace.WithAttributes(
		attribute.String("organization_id", req.OrganizationID),
		attribute.String("service_id", req.ServiceID),
		attribute.String("collaborator_id", req.CollaboratorID),
		attribute.String("date", model.FormatDate(req.Date)),
		attribute.Int("start_minute", req.StartMinute),
	))
	defer span.End()

	var res Result
	err := g.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		res = Result{}
		if req.IdempotencyKey != "" {
			apptID, found, err := tx.LockIdempotencyKey(ctx, req.OrganizationID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if found && apptID != "" {
				appt, err := tx.GetAppointment(ctx, req.OrganizationID, apptID)
				if err != nil {
					return fmt.Errorf("load replayed appointment: %w", err)
				}
				res = Result{Appointment: appt, Replayed: true}
				return nil
			}
		}

		appt, err := g.admit(ctx, tx, req)
		if err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			if err := tx.FinalizeIdempotency(ctx, req.OrganizationID, req.IdempotencyKey, appt.ID); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		res = Result{Appointment: appt}
		return nil
	})
	if err != nil {
		if c, ok := model.AsConflict(err); ok {
			span.SetAttributes(attribute.String("conflict_type", string(c.Type)))
		} else if !model.IsValidation(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "admission failed")
		}
		return Result{}, err
	}

	span.SetAttributes(
		attribute.String("appointment_id", res.Appointment.ID),
		attribute.Bool("replayed", res.Replayed),
	)
	if !res.Replayed {
		g.logger.Info("appointment admitted",
			"appointment_id", res.Appointment.ID,
			"organization_id", res.Appointment.OrganizationID,
			"collaborator_id", res.Appointment.CollaboratorID,
			"date", model.FormatDate(res.Appointment.ScheduledDate),
			"time", model.FormatClock(res.Appointment.StartMinute),
		)
	}
	return res, nil
}

func (g *Guard) admit(ctx context.Context, tx storage.Tx, req Request) (model.Appointment, error) {
	svc, err := tx.GetService(ctx, req.OrganizationID, req.ServiceID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Appointment{}, model.Invalid("service_id", "unknown service")
		}
		return model.Appointment{}, fmt.Errorf("load service: %w", err)
	}
	if !svc.IsActive {
		return model.Appointment{}, model.Invalid("service_id", "service is not active")
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = svc.DurationMinutes
	}
	if duration <= 0 {
		return model.Appointment{}, model.Invalid("duration_minutes", "must be positive")
	}
	if req.StartMinute+duration > interval.MinutesPerDay {
		return model.Appointment{}, model.Invalid("time", "appointment may not cross midnight")
	}
	want := interval.New(req.StartMinute, req.StartMinute+duration)

	collaboratorID, err := g.pickCollaborator(ctx, tx, req, want)
	if err != nil {
		return model.Appointment{}, err
	}

	appt := model.Appointment{
		OrganizationID:  req.OrganizationID,
		CollaboratorID:  collaboratorID,
		ServiceID:       svc.ID,
		ClientID:        req.ClientID,
		ScheduledDate:   req.Date,
		StartMinute:     req.StartMinute,
		DurationMinutes: duration,
		Status:          model.StatusPending,
		Notes:           req.Notes,
		Price:           svc.Price,
	}
	if err := tx.InsertAppointment(ctx, &appt); err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, model.MemberBusy()
		}
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}

	evt, err := outbox.AppointmentEvent(appt, g.now())
	if err != nil {
		return model.Appointment{}, fmt.Errorf("build event: %w", err)
	}
	if err := tx.InsertEvent(ctx, evt); err != nil {
		return model.Appointment{}, fmt.Errorf("write outbox event: %w", err)
	}
	return appt, nil
}

// pickCollaborator checks the requested collaborator, or walks the service's collaborators in
// id order and takes the first one free for want.
func (g *Guard) pickCollaborator(ctx context.Context, tx storage.Tx, req Request, want interval.Interval) (string, error) {
	if req.CollaboratorID != "" {
		c, err := tx.GetCollaborator(ctx, req.OrganizationID, req.CollaboratorID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return "", model.Invalid("collaborator_id", "unknown collaborator")
			}
			return "", fmt.Errorf("load collaborator: %w", err)
		}
		if !c.IsActive {
			return "", model.Invalid("collaborator_id", "collaborator is not active")
		}
		offers, err := tx.OffersService(ctx, req.OrganizationID, c.ID, req.ServiceID)
		if err != nil {
			return "", fmt.Errorf("check member service: %w", err)
		}
		if !offers {
			return "", model.Invalid("collaborator_id", "collaborator does not offer this service")
		}

		fit, err := availability.CheckFit(ctx, tx, req.OrganizationID, c.ID, req.Date, want)
		if err != nil {
			return "", err
		}
		switch fit {
		case availability.FitBusy:
			return "", model.MemberBusy()
		case availability.FitClosed:
			return "", model.NoAvailability("collaborator is not working at the requested time")
		}
		return c.ID, nil
	}

	ids, err := tx.ListServiceCollaborators(ctx, req.OrganizationID, req.ServiceID)
	if err != nil {
		return "", fmt.Errorf("list service collaborators: %w", err)
	}
	for _, id := range ids {
		fit, err := availability.CheckFit(ctx, tx, req.OrganizationID, id, req.Date, want)
		if err != nil {
			return "", err
		}
		if fit == availability.FitOK {
			return id, nil
		}
	}
	return "", model.NoAvailability("")
}

func normalize(req Request) Request {
	req.OrganizationID = strings.TrimSpace(req.OrganizationID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.CollaboratorID = strings.TrimSpace(req.CollaboratorID)
	req.Notes = strings.TrimSpace(req.Notes)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	return req
}

func validate(req Request) error {
	switch {
	case req.OrganizationID == "":
		return model.Invalid("organization_id", "required")
	case req.ClientID == "":
		return model.Invalid("client_id", "required")
	case req.ServiceID == "":
		return model.Invalid("service_id", "required")
	case req.Date.IsZero():
		return model.Invalid("date", "required")
	case req.StartMinute < 0 || req.StartMinute >= interval.MinutesPerDay:
		return model.Invalid("time", "must be within the day")
	case req.DurationMinutes < 0 || req.DurationMinutes > interval.MinutesPerDay:
		return model.Invalid("duration_minutes", "must be between 1 and %d", interval.MinutesPerDay)
	case len(req.IdempotencyKey) > 128:
		return model.Invalid("idempotency_key", "too long")
	}
	return nil
}
