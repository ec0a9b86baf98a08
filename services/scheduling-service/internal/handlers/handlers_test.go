package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/admission"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage/storagetest"
)

func newMux(t *testing.T) (*http.ServeMux, *storage.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := storagetest.Salon(t)
	mux := http.NewServeMux()
	Register(mux,
		NewPublicHandler(availability.NewEngine(s, 15), admission.NewGuard(s, logger), logger),
		NewAppointmentHandler(s, lifecycle.NewMachine(s, logger), logger),
		NewScheduleHandler(s, logger),
	)
	return mux, s
}

func do(t *testing.T, mux http.Handler, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func booking(collaboratorID, clock string) map[string]any {
	return map[string]any{
		"organization_id": storagetest.OrgID,
		"client_id":       "client-9",
		"service_id":      storagetest.ServiceID,
		"collaborator_id": collaboratorID,
		"date":            "2024-06-10",
		"time":            clock,
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	mux, _ := newMux(t)
	rr := do(t, mux, http.MethodGet, "/api/v1/public/availability?organization_id=org-1&service_id=svc-haircut&date=2024-06-10", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[availabilityResponse](t, rr)
	if len(resp.Slots) == 0 || resp.Slots[0].Time != "09:00" || !resp.Slots[0].Available {
		t.Fatalf("unexpected first slot %+v", resp.Slots)
	}
	if len(resp.Slots[0].CollaboratorIDs) != 2 {
		t.Fatalf("expected both collaborators free at 09:00, got %v", resp.Slots[0].CollaboratorIDs)
	}
	if resp.DurationMinutes != 30 || resp.StepMinutes != 15 {
		t.Fatalf("unexpected duration/step %d/%d", resp.DurationMinutes, resp.StepMinutes)
	}
}

func TestAvailabilityEndpointValidation(t *testing.T) {
	mux, _ := newMux(t)
	for _, target := range []string{
		"/api/v1/public/availability?service_id=svc-haircut&date=2024-06-10",
		"/api/v1/public/availability?organization_id=org-1&service_id=svc-haircut&date=10/06/2024",
		"/api/v1/public/availability?organization_id=org-1&service_id=missing&date=2024-06-10",
		"/api/v1/public/availability?organization_id=org-1&service_id=svc-haircut&date=2024-06-10&duration_minutes=0",
		"/api/v1/public/availability?organization_id=org-1&service_id=svc-haircut&date=2024-06-10&duration_minutes=1441",
		"/api/v1/public/availability?organization_id=org-1&service_id=svc-haircut&date=2024-06-10&include_completed=maybe",
	} {
		if rr := do(t, mux, http.MethodGet, target, nil, nil); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
	}
	if rr := do(t, mux, http.MethodPost, "/api/v1/public/availability", nil, nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestAvailabilityEndpointOptions(t *testing.T) {
	mux, s := newMux(t)
	storagetest.Book(t, s, storagetest.CollabA, storagetest.Monday, 10*60, 30, model.StatusCompleted)
	base := "/api/v1/public/availability?organization_id=org-1&service_id=svc-haircut&collaborator_id=collab-a&date=2024-06-10"

	slotAt := func(resp availabilityResponse, clock string) slotItem {
		t.Helper()
		for _, sl := range resp.Slots {
			if sl.Time == clock {
				return sl
			}
		}
		t.Fatalf("no slot at %s", clock)
		return slotItem{}
	}

	rr := do(t, mux, http.MethodGet, base, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !slotAt(decode[availabilityResponse](t, rr), "10:00").Available {
		t.Fatal("completed appointment should not block 10:00 by default")
	}

	rr = do(t, mux, http.MethodGet, base+"&include_completed=true", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if slotAt(decode[availabilityResponse](t, rr), "10:00").Available {
		t.Fatal("completed appointment should block 10:00 when included")
	}

	rr = do(t, mux, http.MethodGet, base+"&duration_minutes=120", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[availabilityResponse](t, rr)
	if resp.DurationMinutes != 120 {
		t.Fatalf("expected duration 120, got %d", resp.DurationMinutes)
	}
	last := ""
	for _, sl := range resp.Slots {
		if sl.Available {
			last = sl.Time
		}
	}
	if last != "16:00" {
		t.Fatalf("expected last two-hour start at 16:00, got %q", last)
	}
}

func TestBookingConflictReturnsJSON(t *testing.T) {
	mux, _ := newMux(t)

	rr := do(t, mux, http.MethodPost, "/api/v1/public/bookings", booking(storagetest.CollabA, "10:00"), nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decode[appointmentResponse](t, rr)
	if created.Appointment.Status != "pending" || created.Appointment.EndTime != "10:30" {
		t.Fatalf("unexpected appointment %+v", created.Appointment)
	}

	rr = do(t, mux, http.MethodPost, "/api/v1/public/bookings", booking(storagetest.CollabA, "10:15"), nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json conflict, got %q", ct)
	}
	if body := decode[errorResponse](t, rr); body.ConflictType != string(model.ConflictMemberBusy) {
		t.Fatalf("expected member_busy, got %+v", body)
	}

	rr = do(t, mux, http.MethodPost, "/api/v1/public/bookings", booking(storagetest.CollabA, "19:00"), nil)
	if body := decode[errorResponse](t, rr); rr.Code != http.StatusConflict || body.ConflictType != string(model.ConflictNoAvailability) {
		t.Fatalf("expected no_availability, got %d %+v", rr.Code, body)
	}
}

func TestBookingValidation(t *testing.T) {
	mux, _ := newMux(t)
	bad := booking("", "9am")
	if rr := do(t, mux, http.MethodPost, "/api/v1/public/bookings", bad, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad time, got %d", rr.Code)
	}
	unknown := booking("", "09:00")
	unknown["surprise"] = true
	if rr := do(t, mux, http.MethodPost, "/api/v1/public/bookings", unknown, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
}

func TestBookingIdempotencyKey(t *testing.T) {
	mux, s := newMux(t)
	headers := map[string]string{"Idempotency-Key": "abc"}

	first := do(t, mux, http.MethodPost, "/api/v1/public/bookings", booking("", "11:00"), headers)
	second := do(t, mux, http.MethodPost, "/api/v1/public/bookings", booking("", "11:00"), headers)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header")
	}
	a := decode[appointmentResponse](t, first).Appointment.ID
	b := decode[appointmentResponse](t, second).Appointment.ID
	if a != b {
		t.Fatalf("expected same appointment, got %s and %s", a, b)
	}
	appts, err := s.ListAppointments(context.Background(), storagetest.OrgID, storage.AppointmentFilter{})
	if err != nil || len(appts) != 1 {
		t.Fatalf("expected one stored appointment, got %d (%v)", len(appts), err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux, s := newMux(t)
	appt := storagetest.Book(t, s, storagetest.CollabA, storagetest.Monday, 600, 30, model.StatusPending)

	status := func(newStatus string) *httptest.ResponseRecorder {
		return do(t, mux, http.MethodPost, "/api/v1/appointments/status", map[string]any{
			"organization_id": storagetest.OrgID,
			"appointment_id":  appt.ID,
			"new_status":      newStatus,
		}, nil)
	}

	if rr := status("confirmed"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr := status("pending")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if body := decode[errorResponse](t, rr); body.From != "confirmed" || body.To != "pending" {
		t.Fatalf("unexpected illegal transition body %+v", body)
	}
	if rr := status("archived"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}

	rr = do(t, mux, http.MethodPost, "/api/v1/appointments/status", map[string]any{
		"organization_id": storagetest.OrgID,
		"appointment_id":  "missing",
		"new_status":      "confirmed",
	}, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestListAndGetAppointments(t *testing.T) {
	mux, s := newMux(t)
	appt := storagetest.Book(t, s, storagetest.CollabB, storagetest.Monday, 600, 30, model.StatusConfirmed)
	storagetest.Book(t, s, storagetest.CollabA, storagetest.Monday.AddDate(0, 0, 7), 600, 30, model.StatusPending)
	headers := map[string]string{organizationHeader: storagetest.OrgID}

	rr := do(t, mux, http.MethodGet, "/api/v1/appointments?date=2024-06-10", nil, headers)
	list := decode[listAppointmentsResponse](t, rr)
	if rr.Code != http.StatusOK || len(list.Appointments) != 1 || list.Appointments[0].ID != appt.ID {
		t.Fatalf("unexpected list %d %+v", rr.Code, list)
	}

	rr = do(t, mux, http.MethodGet, "/api/v1/appointments/get?id="+appt.ID, nil, headers)
	if got := decode[appointmentResponse](t, rr); rr.Code != http.StatusOK || got.Appointment.CollaboratorID != storagetest.CollabB {
		t.Fatalf("unexpected get %d %+v", rr.Code, got)
	}

	if rr := do(t, mux, http.MethodGet, "/api/v1/appointments", nil, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without organization, got %d", rr.Code)
	}
}

func TestWorkingHoursReplace(t *testing.T) {
	mux, _ := newMux(t)
	headers := map[string]string{organizationHeader: storagetest.OrgID}

	body := map[string]any{
		"collaborator_id": storagetest.CollabA,
		"rules": []map[string]any{
			{"weekday": 1, "start": "13:00", "end": "15:00"},
			{"weekday": 2, "start": "09:00", "end": "12:00"},
		},
	}
	if rr := do(t, mux, http.MethodPut, "/api/v1/working-hours", body, headers); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr := do(t, mux, http.MethodGet, "/api/v1/working-hours?collaborator_id="+storagetest.CollabA, nil, headers)
	got := decode[workingHoursPayload](t, rr)
	if len(got.Rules) != 2 || got.Rules[0].Start != "13:00" {
		t.Fatalf("expected replaced rules, got %+v", got)
	}

	rr = do(t, mux, http.MethodGet, "/api/v1/public/availability?organization_id=org-1&service_id=svc-haircut&collaborator_id=collab-a&date=2024-06-10", nil, nil)
	slots := decode[availabilityResponse](t, rr).Slots
	if len(slots) == 0 || slots[0].Time != "13:00" || slots[len(slots)-1].Time != "14:30" {
		t.Fatalf("availability should follow new hours, got %+v", slots)
	}

	dup := map[string]any{
		"collaborator_id": storagetest.CollabA,
		"rules": []map[string]any{
			{"weekday": 1, "start": "09:00", "end": "10:00"},
			{"weekday": 1, "start": "11:00", "end": "12:00"},
		},
	}
	if rr := do(t, mux, http.MethodPut, "/api/v1/working-hours", dup, headers); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate weekday, got %d", rr.Code)
	}
	inverted := map[string]any{
		"collaborator_id": storagetest.CollabA,
		"rules":           []map[string]any{{"weekday": 1, "start": "12:00", "end": "09:00"}},
	}
	if rr := do(t, mux, http.MethodPut, "/api/v1/working-hours", inverted, headers); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted rule, got %d", rr.Code)
	}
}

func TestScheduleBlocksLifecycle(t *testing.T) {
	mux, _ := newMux(t)
	headers := map[string]string{organizationHeader: storagetest.OrgID}

	rr := do(t, mux, http.MethodPost, "/api/v1/schedule-blocks", map[string]any{
		"collaborator_id": storagetest.CollabA,
		"date":            "2024-06-10",
		"is_all_day":      true,
		"reason":          "holiday",
	}, headers)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	block := decode[scheduleBlockItem](t, rr)

	rr = do(t, mux, http.MethodPost, "/api/v1/public/bookings", booking(storagetest.CollabA, "10:00"), nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected blocked day to reject booking, got %d", rr.Code)
	}

	rr = do(t, mux, http.MethodGet, "/api/v1/schedule-blocks?collaborator_id=collab-a&date=2024-06-10", nil, headers)
	if list := decode[scheduleBlocksResponse](t, rr); len(list.Blocks) != 1 || list.Blocks[0].ID != block.ID {
		t.Fatalf("unexpected blocks %+v", list)
	}

	if rr := do(t, mux, http.MethodDelete, "/api/v1/schedule-blocks?id="+block.ID, nil, headers); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := do(t, mux, http.MethodDelete, "/api/v1/schedule-blocks?id="+block.ID, nil, headers); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}

	rr = do(t, mux, http.MethodPost, "/api/v1/schedule-blocks", map[string]any{
		"collaborator_id": storagetest.CollabA,
		"date":            "2024-06-10",
		"start":           "14:00",
		"end":             "13:00",
	}, headers)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted block, got %d", rr.Code)
	}
}

func TestScheduleBlockUnknownCollaborator(t *testing.T) {
	mux, s := newMux(t)
	headers := map[string]string{organizationHeader: storagetest.OrgID}

	rr := do(t, mux, http.MethodPost, "/api/v1/schedule-blocks", map[string]any{
		"collaborator_id": "collab-typo",
		"date":            "2024-06-10",
		"is_all_day":      true,
	}, headers)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decode[errorResponse](t, rr); resp.Field != "collaborator_id" {
		t.Fatalf("expected collaborator_id field, got %+v", resp)
	}
	blocks, err := s.ListScheduleBlocks(context.Background(), storagetest.OrgID, "collab-typo", storagetest.Monday)
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("expected no stored block, got %d", len(blocks))
	}
}
