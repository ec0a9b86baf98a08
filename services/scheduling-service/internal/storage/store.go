package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/outbox"
)

// Reader is the read side shared by availability computation and admission transactions.
// Lookups of a single row return model.ErrNotFound when nothing matches.
type Reader interface {
	GetService(ctx context.Context, orgID, serviceID string) (model.Service, error)
	GetCollaborator(ctx context.Context, orgID, collaboratorID string) (model.Collaborator, error)
	// ListServiceCollaborators returns active collaborators offering serviceID, ordered by id.
	ListServiceCollaborators(ctx context.Context, orgID, serviceID string) ([]string, error)
	OffersService(ctx context.Context, orgID, collaboratorID, serviceID string) (bool, error)
	// ListWorkingHours returns the active rules of one weekday (0 = Sunday).
	ListWorkingHours(ctx context.Context, orgID, collaboratorID string, weekday int) ([]model.WorkingHourRule, error)
	ListScheduleBlocks(ctx context.Context, orgID, collaboratorID string, date time.Time) ([]model.ScheduleBlock, error)
	ListAppointmentsOn(ctx context.Context, orgID, collaboratorID string, date time.Time, statuses []model.Status) ([]model.Appointment, error)
	GetAppointment(ctx context.Context, orgID, appointmentID string) (model.Appointment, error)
}

// Tx is a unit of work. Implementations run it with serializable semantics.
type Tx interface {
	Reader
	// LockIdempotencyKey claims key for the organization. found reports an earlier claim;
	// appointmentID is set when that claim produced an appointment.
	LockIdempotencyKey(ctx context.Context, orgID, key string) (appointmentID string, found bool, err error)
	FinalizeIdempotency(ctx context.Context, orgID, key, appointmentID string) error
	// InsertAppointment assigns ID and timestamps. An overlap with an active appointment of the
	// same collaborator fails with an error for which IsConflict is true.
	InsertAppointment(ctx context.Context, appt *model.Appointment) error
	GetAppointmentForUpdate(ctx context.Context, orgID, appointmentID string) (model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, orgID, appointmentID string, status model.Status, notes *string) (model.Appointment, error)
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

type AppointmentFilter struct {
	Date           *time.Time
	CollaboratorID string
	Limit          int
}

type Store interface {
	Reader
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListAppointments(ctx context.Context, orgID string, filter AppointmentFilter) ([]model.Appointment, error)

	ListAllWorkingHours(ctx context.Context, orgID, collaboratorID string) ([]model.WorkingHourRule, error)
	// ReplaceWorkingHours deletes every rule of the collaborator and inserts rules.
	ReplaceWorkingHours(ctx context.Context, orgID, collaboratorID string, rules []model.WorkingHourRule) error

	CreateScheduleBlock(ctx context.Context, block *model.ScheduleBlock) error
	DeleteScheduleBlock(ctx context.Context, orgID, blockID string) error

	UpsertService(ctx context.Context, svc model.Service) error
	UpsertCollaborator(ctx context.Context, c model.Collaborator) error
	SetMemberService(ctx context.Context, ms model.MemberService, offered bool) error
}
