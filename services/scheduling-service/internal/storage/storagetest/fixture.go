// Package storagetest seeds an in-memory store with a small salon for tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
)

const (
	OrgID     = "org-1"
	ServiceID = "svc-haircut"
	// CollabA and CollabB both offer ServiceID.
	CollabA = "collab-a"
	CollabB = "collab-b"
	// CollabC works but does not offer ServiceID.
	CollabC = "collab-c"
)

// Monday is 2024-06-10.
var Monday = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

// Salon returns a store where A and B work 09:00-18:00 on Mondays and the haircut takes 30
// minutes. C works the same hours but only offers other services.
func Salon(t testing.TB) *storage.MemoryStore {
	t.Helper()
	s := storage.NewMemoryStore()
	ctx := context.Background()

	must(t, s.UpsertService(ctx, model.Service{
		ID: ServiceID, OrganizationID: OrgID, Name: "Haircut", DurationMinutes: 30, Price: "35.00", IsActive: true,
	}))
	for _, id := range []string{CollabA, CollabB, CollabC} {
		must(t, s.UpsertCollaborator(ctx, model.Collaborator{ID: id, OrganizationID: OrgID, Name: id, Role: "member", IsActive: true}))
		must(t, s.ReplaceWorkingHours(ctx, OrgID, id, []model.WorkingHourRule{
			{Weekday: int(time.Monday), StartMinute: 9 * 60, EndMinute: 18 * 60, IsActive: true},
		}))
	}
	for _, id := range []string{CollabA, CollabB} {
		must(t, s.SetMemberService(ctx, model.MemberService{OrganizationID: OrgID, CollaboratorID: id, ServiceID: ServiceID}, true))
	}
	return s
}

// Book inserts an appointment directly, bypassing admission checks.
func Book(t testing.TB, s storage.Store, collaboratorID string, date time.Time, start, duration int, status model.Status) model.Appointment {
	t.Helper()
	appt := model.Appointment{
		OrganizationID:  OrgID,
		CollaboratorID:  collaboratorID,
		ServiceID:       ServiceID,
		ClientID:        "client-fixture",
		ScheduledDate:   date,
		StartMinute:     start,
		DurationMinutes: duration,
		Status:          status,
	}
	must(t, s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertAppointment(ctx, &appt)
	}))
	return appt
}

// Block closes [start, end) on date. A negative start makes the block all-day.
func Block(t testing.TB, s storage.Store, collaboratorID string, date time.Time, start, end int) model.ScheduleBlock {
	t.Helper()
	b := model.ScheduleBlock{OrganizationID: OrgID, CollaboratorID: collaboratorID, Date: date, Reason: "fixture"}
	if start < 0 {
		b.IsAllDay = true
	} else {
		b.StartMinute, b.EndMinute = &start, &end
	}
	must(t, s.CreateScheduleBlock(context.Background(), &b))
	return b
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}
