package admission

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage/storagetest"
)

func request(collaboratorID string, start int) Request {
	return Request{
		OrganizationID: storagetest.OrgID,
		ClientID:       "client-1",
		ServiceID:      storagetest.ServiceID,
		CollaboratorID: collaboratorID,
		Date:           storagetest.Monday,
		StartMinute:    start,
	}
}

func conflictType(err error) model.ConflictType {
	if c, ok := model.AsConflict(err); ok {
		return c.Type
	}
	return ""
}

func TestAdmitCreatesPendingAppointment(t *testing.T) {
	s := storagetest.Salon(t)
	g := NewGuard(s, nil)

	res, err := g.Admit(context.Background(), request(storagetest.CollabA, 10*60))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	appt := res.Appointment
	if appt.ID == "" || appt.Status != model.StatusPending {
		t.Fatalf("unexpected appointment: %+v", appt)
	}
	if appt.DurationMinutes != 30 || appt.Price != "35.00" {
		t.Fatalf("expected service defaults, got duration=%d price=%s", appt.DurationMinutes, appt.Price)
	}

	events := s.Events()
	if len(events) != 1 || events[0].EventType != outbox.EventAppointmentRequested || events[0].AggregateID != appt.ID {
		t.Fatalf("expected one requested event, got %+v", events)
	}
}

func TestAdmitDetectsOverlap(t *testing.T) {
	s := storagetest.Salon(t)
	storagetest.Book(t, s, storagetest.CollabA, storagetest.Monday, 10*60, 30, model.StatusConfirmed)
	g := NewGuard(s, nil)

	_, err := g.Admit(context.Background(), request(storagetest.CollabA, 10*60+15))
	if conflictType(err) != model.ConflictMemberBusy {
		t.Fatalf("expected member_busy at 10:15, got %v", err)
	}
	if _, err := g.Admit(context.Background(), request(storagetest.CollabA, 10*60+30)); err != nil {
		t.Fatalf("10:30 should be admitted: %v", err)
	}
}

func TestAdmitIgnoresInactiveAppointments(t *testing.T) {
	s := storagetest.Salon(t)
	storagetest.Book(t, s, storagetest.CollabA, storagetest.Monday, 10*60, 30, model.StatusCancelled)
	storagetest.Book(t, s, storagetest.CollabA, storagetest.Monday, 11*60, 30, model.StatusCompleted)
	g := NewGuard(s, nil)

	for _, start := range []int{10 * 60, 11 * 60} {
		if _, err := g.Admit(context.Background(), request(storagetest.CollabA, start)); err != nil {
			t.Fatalf("start %d should be admitted: %v", start, err)
		}
	}
}

func TestAdmitEndOfDayBoundary(t *testing.T) {
	s := storagetest.Salon(t)
	g := NewGuard(s, nil)

	ok := request(storagetest.CollabA, 17*60+45)
	ok.DurationMinutes = 15
	if _, err := g.Admit(context.Background(), ok); err != nil {
		t.Fatalf("17:45 for 15 minutes should fit: %v", err)
	}

	late := request(storagetest.CollabB, 17*60+46)
	late.DurationMinutes = 15
	if _, err := g.Admit(context.Background(), late); conflictType(err) != model.ConflictNoAvailability {
		t.Fatalf("expected no_availability at 17:46, got %v", err)
	}
}

func TestAdmitRespectsBlocks(t *testing.T) {
	s := storagetest.Salon(t)
	storagetest.Block(t, s, storagetest.CollabA, storagetest.Monday, 12*60, 13*60)
	g := NewGuard(s, nil)

	if _, err := g.Admit(context.Background(), request(storagetest.CollabA, 12*60+30)); conflictType(err) != model.ConflictNoAvailability {
		t.Fatalf("expected no_availability inside block, got %v", err)
	}
}

func TestAdmitNoPreferencePicksFreeCollaborator(t *testing.T) {
	s := storagetest.Salon(t)
	storagetest.Book(t, s, storagetest.CollabA, storagetest.Monday, 14*60, 30, model.StatusPending)
	g := NewGuard(s, nil)

	res, err := g.Admit(context.Background(), request("", 14*60))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if res.Appointment.CollaboratorID != storagetest.CollabB {
		t.Fatalf("expected collab-b, got %s", res.Appointment.CollaboratorID)
	}

	if _, err := g.Admit(context.Background(), request("", 14*60)); conflictType(err) != model.ConflictNoAvailability {
		t.Fatalf("expected no_availability once both are busy, got %v", err)
	}
}

func TestAdmitConcurrentRequestsForSameSlot(t *testing.T) {
	s := storagetest.Salon(t)
	g := NewGuard(s, nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Admit(context.Background(), request(storagetest.CollabA, 10*60))
		}(i)
	}
	wg.Wait()

	var ok, busy int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case conflictType(err) == model.ConflictMemberBusy:
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || busy != workers-1 {
		t.Fatalf("expected 1 success and %d member_busy, got %d and %d", workers-1, ok, busy)
	}
}

func TestAdmitEveryAvailableSlot(t *testing.T) {
	seed := storagetest.Salon(t)
	storagetest.Book(t, seed, storagetest.CollabA, storagetest.Monday, 11*60, 60, model.StatusConfirmed)
	storagetest.Block(t, seed, storagetest.CollabA, storagetest.Monday, 15*60, 16*60)

	res, err := availability.NewEngine(seed, 15).Compute(context.Background(), availability.Query{
		OrganizationID: storagetest.OrgID,
		ServiceID:      storagetest.ServiceID,
		CollaboratorID: storagetest.CollabA,
		Date:           storagetest.Monday,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for _, minute := range res.AvailableTimes() {
		s := storagetest.Salon(t)
		storagetest.Book(t, s, storagetest.CollabA, storagetest.Monday, 11*60, 60, model.StatusConfirmed)
		storagetest.Block(t, s, storagetest.CollabA, storagetest.Monday, 15*60, 16*60)
		if _, err := NewGuard(s, nil).Admit(context.Background(), request(storagetest.CollabA, minute)); err != nil {
			t.Fatalf("available slot %s rejected: %v", model.FormatClock(minute), err)
		}
	}
}

func TestAdmitIdempotentReplay(t *testing.T) {
	s := storagetest.Salon(t)
	g := NewGuard(s, nil)
	req := request(storagetest.CollabA, 9*60)
	req.IdempotencyKey = "key-1"

	first, err := g.Admit(context.Background(), req)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	second, err := g.Admit(context.Background(), req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed || second.Appointment.ID != first.Appointment.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Appointment.ID, second)
	}
	if n := len(s.Events()); n != 1 {
		t.Fatalf("expected one event after replay, got %d", n)
	}
}

func TestAdmitValidation(t *testing.T) {
	s := storagetest.Salon(t)
	g := NewGuard(s, nil)

	missingClient := request(storagetest.CollabA, 600)
	missingClient.ClientID = " "
	crossing := request(storagetest.CollabA, 23*60+50)
	unknownService := request(storagetest.CollabA, 600)
	unknownService.ServiceID = "nope"
	wrongCollaborator := request(storagetest.CollabC, 600)
	hugeDuration := request(storagetest.CollabA, 600)
	hugeDuration.DurationMinutes = math.MaxInt - 100

	for name, req := range map[string]Request{
		"missing client":     missingClient,
		"crosses midnight":   crossing,
		"unknown service":    unknownService,
		"does not offer svc": wrongCollaborator,
		"huge duration":      hugeDuration,
	} {
		if _, err := g.Admit(context.Background(), req); !model.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if n := len(s.Events()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}
