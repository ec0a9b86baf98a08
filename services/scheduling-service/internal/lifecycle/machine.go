package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
)

var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
}

// Allowed reports whether an appointment in from may move to to. Staying in place is not a
// transition.
func Allowed(from, to model.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Change describes a committed transition.
type Change struct {
	Appointment model.Appointment
	From        model.Status
}

// Effect runs after a transition into On has committed. A failing effect is logged; the
// transition stands.
type Effect struct {
	Name string
	On   model.Status
	Run  func(ctx context.Context, c Change) error
}

type Machine struct {
	store   storage.Store
	logger  *slog.Logger
	effects []Effect
	now     func() time.Time
	tracer  trace.Tracer
}

func NewMachine(store storage.Store, logger *slog.Logger, effects ...Effect) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		store:   store,
		logger:  logger,
		effects: effects,
		now:     time.Now,
		tracer:  otel.Tracer("scheduling/lifecycle"),
	}
}

// Transition moves the appointment to status and records the matching outbox event in the same
// transaction. notes, when non-nil, replaces the appointment notes.
func (m *Machine) Transition(ctx context.Context, orgID, appointmentID string, to model.Status, notes *string) (model.Appointment, error) {
	orgID = strings.TrimSpace(orgID)
	appointmentID = strings.TrimSpace(appointmentID)
	if orgID == "" {
		return model.Appointment{}, model.Invalid("organization_id", "required")
	}
	if appointmentID == "" {
		return model.Appointment{}, model.Invalid("appointment_id", "required")
	}
	if _, ok := model.ParseStatus(string(to)); !ok {
		return model.Appointment{}, model.Invalid("new_status", "unknown status %q", to)
	}

	ctx, span := m.tracer.Start(ctx, "lifecycle.transition", trace.WithAttributes(
		attribute.String("appointment_id", appointmentID),
		attribute.String("new_status", string(to)),
	))
	defer span.End()

	var change Change
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := tx.GetAppointmentForUpdate(ctx, orgID, appointmentID)
		if err != nil {
			return err
		}
		if !Allowed(current.Status, to) {
			return &model.IllegalTransitionError{From: current.Status, To: to}
		}
		updated, err := tx.UpdateAppointmentStatus(ctx, orgID, appointmentID, to, notes)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		evt, err := outbox.AppointmentEvent(updated, m.now())
		if err != nil {
			return fmt.Errorf("build event: %w", err)
		}
		if err := tx.InsertEvent(ctx, evt); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}
		change = Change{Appointment: updated, From: current.Status}
		return nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) && !model.IsIllegalTransition(err) {
			span.RecordError(err)
		}
		return model.Appointment{}, err
	}

	m.logger.Info("appointment status changed",
		"appointment_id", appointmentID,
		"from", change.From,
		"to", to,
	)
	m.runEffects(ctx, change)
	return change.Appointment, nil
}

func (m *Machine) runEffects(ctx context.Context, c Change) {
	for _, eff := range m.effects {
		if eff.On != c.Appointment.Status || eff.Run == nil {
			continue
		}
		if err := eff.Run(ctx, c); err != nil {
			m.logger.Error("post-transition effect failed",
				"effect", eff.Name,
				"appointment_id", c.Appointment.ID,
				"err", err,
			)
		}
	}
}
