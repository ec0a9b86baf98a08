package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/interval"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
)

const DefaultStepMinutes = 15

type Engine struct {
	store  storage.Reader
	step   int
	tracer trace.Tracer
}

func NewEngine(store storage.Reader, stepMinutes int) *Engine {
	if stepMinutes <= 0 || stepMinutes > 240 {
		stepMinutes = DefaultStepMinutes
	}
	return &Engine{
		store:  store,
		step:   stepMinutes,
		tracer: otel.Tracer("scheduling/availability"),
	}
}

func (e *Engine) StepMinutes() int {
	return e.step
}

type Query struct {
	OrganizationID string
	ServiceID      string
	// CollaboratorID is empty for "no preference".
	CollaboratorID string
	Date           time.Time
	// DurationMinutes overrides the service duration when positive.
	DurationMinutes int
	// IncludeCompleted also counts completed appointments as occupied.
	IncludeCompleted bool
}

// Slot is one grid start time inside the business-hours window.
type Slot struct {
	Minute          int
	Available       bool
	CollaboratorIDs []string
}

type Result struct {
	Date            time.Time
	ServiceID       string
	DurationMinutes int
	Slots           []Slot
}

// AvailableTimes lists the bookable start minutes in ascending order.
func (r Result) AvailableTimes() []int {
	var out []int
	for _, s := range r.Slots {
		if s.Available {
			out = append(out, s.Minute)
		}
	}
	return out
}

// FreeCollaborators returns who can take a booking starting at minute.
func (r Result) FreeCollaborators(minute int) []string {
	for _, s := range r.Slots {
		if s.Minute == minute {
			return s.CollaboratorIDs
		}
	}
	return nil
}

type candidate struct {
	id  string
	day Day
}

// Compute returns every grid time in the union of the candidates' working hours, tagged with
// the collaborators free for [t, t+duration). Grid times are multiples of the step counted
// from midnight. A date on which no candidate works yields an empty result.
func (e *Engine) Compute(ctx context.Context, q Query) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "availability.compute", trace.WithAttributes(
		attribute.String("organization_id", q.OrganizationID),
		attribute.String("service_id", q.ServiceID),
		attribute.String("collaborator_id", q.CollaboratorID),
		attribute.String("date", model.FormatDate(q.Date)),
	))
	defer span.End()

	svc, err := e.store.GetService(ctx, q.OrganizationID, q.ServiceID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Result{}, model.Invalid("service_id", "unknown service")
		}
		span.RecordError(err)
		return Result{}, fmt.Errorf("load service: %w", err)
	}
	if !svc.IsActive {
		return Result{}, model.Invalid("service_id", "service is not active")
	}

	duration := svc.DurationMinutes
	if q.DurationMinutes > 0 {
		duration = q.DurationMinutes
	}
	res := Result{Date: q.Date, ServiceID: svc.ID, DurationMinutes: duration}
	if duration <= 0 || duration > interval.MinutesPerDay {
		return res, model.Invalid("duration_minutes", "must be between 1 and %d", interval.MinutesPerDay)
	}

	ids, err := e.candidateIDs(ctx, q)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	statuses := model.ActiveStatuses
	if q.IncludeCompleted {
		statuses = append([]model.Status{model.StatusCompleted}, model.ActiveStatuses...)
	}

	var candidates []candidate
	var window []interval.Interval
	for _, id := range ids {
		day, err := ResolveDay(ctx, e.store, q.OrganizationID, id, q.Date, statuses)
		if err != nil {
			span.RecordError(err)
			return Result{}, err
		}
		if len(day.Hours) == 0 {
			continue
		}
		candidates = append(candidates, candidate{id: id, day: day})
		window = append(window, day.Hours...)
	}

	for _, w := range interval.Union(window) {
		for t := e.alignUp(w.Start); t+duration <= w.End; t += e.step {
			want := interval.New(t, t+duration)
			slot := Slot{Minute: t}
			for _, c := range candidates {
				if interval.ContainedInAny(c.day.Free, want) {
					slot.CollaboratorIDs = append(slot.CollaboratorIDs, c.id)
				}
			}
			slot.Available = len(slot.CollaboratorIDs) > 0
			res.Slots = append(res.Slots, slot)
		}
	}
	span.SetAttributes(attribute.Int("slots", len(res.Slots)), attribute.Int("candidates", len(candidates)))
	return res, nil
}

// candidateIDs resolves the collaborators to evaluate. A requested collaborator that does not
// offer the service has no bookable time.
func (e *Engine) candidateIDs(ctx context.Context, q Query) ([]string, error) {
	if q.CollaboratorID != "" {
		ok, err := e.store.OffersService(ctx, q.OrganizationID, q.CollaboratorID, q.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("check member service: %w", err)
		}
		if !ok {
			return nil, nil
		}
		return []string{q.CollaboratorID}, nil
	}
	ids, err := e.store.ListServiceCollaborators(ctx, q.OrganizationID, q.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("list service collaborators: %w", err)
	}
	return ids, nil
}

func (e *Engine) alignUp(minute int) int {
	if r := minute % e.step; r != 0 {
		return minute + e.step - r
	}
	return minute
}
