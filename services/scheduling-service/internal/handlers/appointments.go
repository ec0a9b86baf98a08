package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
)

type AppointmentHandler struct {
	store   storage.Store
	machine *lifecycle.Machine
	logger  *slog.Logger
}

func NewAppointmentHandler(store storage.Store, machine *lifecycle.Machine, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{store: store, machine: machine, logger: logger}
}

type updateStatusRequest struct {
	OrganizationID string  `json:"organization_id"`
	AppointmentID  string  `json:"appointment_id"`
	NewStatus      string  `json:"new_status"`
	Notes          *string `json:"notes"`
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.OrganizationID == "" {
		req.OrganizationID = strings.TrimSpace(r.Header.Get(organizationHeader))
	}
	status, ok := model.ParseStatus(strings.TrimSpace(req.NewStatus))
	if !ok {
		writeError(w, r, h.logger, model.Invalid("new_status", "unknown status %q", req.NewStatus))
		return
	}

	appt, err := h.machine.Transition(r.Context(), req.OrganizationID, req.AppointmentID, status, req.Notes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse{Appointment: toAppointmentItem(appt)})
}

type listAppointmentsResponse struct {
	Appointments []appointmentItem `json:"appointments"`
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	orgID, err := organizationID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	filter := storage.AppointmentFilter{
		CollaboratorID: strings.TrimSpace(q.Get("collaborator_id")),
		Limit:          50,
	}
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		d, err := parseDateField("date", raw)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		filter.Date = &d
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}

	appts, err := h.store.ListAppointments(r.Context(), orgID, filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, listAppointmentsResponse{Appointments: items})
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	orgID, err := organizationID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, r, h.logger, model.Invalid("id", "required"))
		return
	}
	appt, err := h.store.GetAppointment(r.Context(), orgID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse{Appointment: toAppointmentItem(appt)})
}
