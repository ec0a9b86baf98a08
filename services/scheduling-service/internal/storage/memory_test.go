package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/outbox"
)

var monday = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func appointmentAt(start, duration int, status model.Status) *model.Appointment {
	return &model.Appointment{
		OrganizationID:  "org-1",
		CollaboratorID:  "c-1",
		ServiceID:       "svc-1",
		ClientID:        "client-1",
		ScheduledDate:   monday,
		StartMinute:     start,
		DurationMinutes: duration,
		Status:          status,
	}
}

func TestMemoryInsertRejectsOverlap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertAppointment(ctx, appointmentAt(600, 30, model.StatusConfirmed))
	})
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err = s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertAppointment(ctx, appointmentAt(615, 30, model.StatusPending))
	})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	err = s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertAppointment(ctx, appointmentAt(630, 30, model.StatusPending))
	})
	if err != nil {
		t.Fatalf("adjacent insert should succeed: %v", err)
	}
}

func TestMemoryRunInTxRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertAppointment(ctx, appointmentAt(600, 30, model.StatusPending)); err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, outbox.Event{EventType: outbox.EventAppointmentRequested}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	appts, err := s.ListAppointmentsOn(ctx, "org-1", "c-1", monday, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(appts) != 0 {
		t.Fatalf("expected rollback to drop appointment, got %d", len(appts))
	}
	if len(s.Events()) != 0 {
		t.Fatalf("expected rollback to drop event, got %d", len(s.Events()))
	}
}

func TestMemoryReplaceWorkingHours(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.ReplaceWorkingHours(ctx, "org-1", "c-1", []model.WorkingHourRule{
		{Weekday: 1, StartMinute: 540, EndMinute: 1080, IsActive: true},
		{Weekday: 2, StartMinute: 540, EndMinute: 1080, IsActive: false},
	}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if err := s.ReplaceWorkingHours(ctx, "org-1", "c-1", []model.WorkingHourRule{
		{Weekday: 3, StartMinute: 600, EndMinute: 720, IsActive: true},
	}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	all, _ := s.ListAllWorkingHours(ctx, "org-1", "c-1")
	if len(all) != 1 || all[0].Weekday != 3 {
		t.Fatalf("expected full replace, got %+v", all)
	}
	mon, _ := s.ListWorkingHours(ctx, "org-1", "c-1", 1)
	if len(mon) != 0 {
		t.Fatalf("expected monday rules gone, got %+v", mon)
	}
}

func TestMemoryServiceCollaboratorsSkipsInactive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.UpsertCollaborator(ctx, model.Collaborator{OrganizationID: "org-1", ID: "b", IsActive: true})
	_ = s.UpsertCollaborator(ctx, model.Collaborator{OrganizationID: "org-1", ID: "a", IsActive: true})
	_ = s.UpsertCollaborator(ctx, model.Collaborator{OrganizationID: "org-1", ID: "z", IsActive: false})
	for _, id := range []string{"a", "b", "z"} {
		_ = s.SetMemberService(ctx, model.MemberService{OrganizationID: "org-1", CollaboratorID: id, ServiceID: "svc-1"}, true)
	}
	_ = s.SetMemberService(ctx, model.MemberService{OrganizationID: "org-2", CollaboratorID: "a", ServiceID: "svc-1"}, true)

	ids, err := s.ListServiceCollaborators(ctx, "org-1", "svc-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected collaborators %v", ids)
	}
}
