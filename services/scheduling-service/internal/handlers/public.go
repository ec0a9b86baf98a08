package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/admission"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
)

// PublicHandler serves the client-facing availability and booking endpoints.
type PublicHandler struct {
	engine *availability.Engine
	guard  *admission.Guard
	logger *slog.Logger
}

func NewPublicHandler(engine *availability.Engine, guard *admission.Guard, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{engine: engine, guard: guard, logger: logger}
}

type slotItem struct {
	Time            string   `json:"time"`
	Available       bool     `json:"available"`
	CollaboratorIDs []string `json:"collaborator_ids"`
}

type availabilityResponse struct {
	OrganizationID  string     `json:"organization_id"`
	ServiceID       string     `json:"service_id"`
	CollaboratorID  string     `json:"collaborator_id,omitempty"`
	Date            string     `json:"date"`
	DurationMinutes int        `json:"duration_minutes"`
	StepMinutes     int        `json:"step_minutes"`
	Slots           []slotItem `json:"slots"`
}

func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	query := availability.Query{
		OrganizationID: strings.TrimSpace(q.Get("organization_id")),
		ServiceID:      strings.TrimSpace(q.Get("service_id")),
		CollaboratorID: strings.TrimSpace(q.Get("collaborator_id")),
	}
	if query.OrganizationID == "" {
		writeError(w, r, h.logger, model.Invalid("organization_id", "required"))
		return
	}
	if query.ServiceID == "" {
		writeError(w, r, h.logger, model.Invalid("service_id", "required"))
		return
	}
	date, err := parseDateField("date", q.Get("date"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	query.Date = date
	if query.DurationMinutes, err = parseOptionalMinutes("duration_minutes", q.Get("duration_minutes")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if query.IncludeCompleted, err = parseOptionalBool("include_completed", q.Get("include_completed")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.engine.Compute(r.Context(), query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	slots := make([]slotItem, 0, len(res.Slots))
	for _, s := range res.Slots {
		ids := s.CollaboratorIDs
		if ids == nil {
			ids = []string{}
		}
		slots = append(slots, slotItem{Time: model.FormatClock(s.Minute), Available: s.Available, CollaboratorIDs: ids})
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		OrganizationID:  query.OrganizationID,
		ServiceID:       query.ServiceID,
		CollaboratorID:  query.CollaboratorID,
		Date:            model.FormatDate(date),
		DurationMinutes: res.DurationMinutes,
		StepMinutes:     h.engine.StepMinutes(),
		Slots:           slots,
	})
}

type createBookingRequest struct {
	OrganizationID  string `json:"organization_id"`
	ClientID        string `json:"client_id"`
	ServiceID       string `json:"service_id"`
	CollaboratorID  string `json:"collaborator_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	start, err := parseClockField("time", req.Time)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.guard.Admit(r.Context(), admission.Request{
		OrganizationID:  req.OrganizationID,
		ClientID:        req.ClientID,
		ServiceID:       req.ServiceID,
		CollaboratorID:  req.CollaboratorID,
		Date:            date,
		StartMinute:     start,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, http.StatusCreated, appointmentResponse{Appointment: toAppointmentItem(res.Appointment)})
}
