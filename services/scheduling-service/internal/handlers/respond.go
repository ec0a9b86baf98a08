package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/libs/httpx"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/interval"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
)

const organizationHeader = "X-Organization-Id"

type errorResponse struct {
	Error        string `json:"error"`
	Field        string `json:"field,omitempty"`
	ConflictType string `json:"conflict_type,omitempty"`
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps domain errors to status codes. Anything unrecognized is logged and reported
// as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var validation *model.ValidationError
	var illegal *model.IllegalTransitionError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Error(), Field: validation.Field})
		return
	}
	if c, ok := model.AsConflict(err); ok {
		writeJSON(w, http.StatusConflict, errorResponse{Error: c.Message, ConflictType: string(c.Type)})
		return
	}
	if errors.As(err, &illegal) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: illegal.Error(), From: string(illegal.From), To: string(illegal.To)})
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "not found")
		return
	}
	logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", httpx.RequestIDFromContext(r.Context()),
		"err", err,
	)
	writeMessage(w, http.StatusInternalServerError, "internal error")
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.Invalid("", "invalid json body")
	}
	return nil
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// organizationID reads the staff tenant header, falling back to the query string.
func organizationID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(organizationHeader))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("organization_id"))
	}
	if id == "" {
		return "", model.Invalid("organization_id", "required")
	}
	return id, nil
}

func parseDateField(field, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, model.Invalid(field, "required")
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, model.Invalid(field, "%v", err)
	}
	return d, nil
}

// parseOptionalMinutes reads a positive minute count no longer than a day; empty means zero.
func parseOptionalMinutes(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > interval.MinutesPerDay {
		return 0, model.Invalid(field, "must be between 1 and %d", interval.MinutesPerDay)
	}
	return n, nil
}

func parseOptionalBool(field, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.Invalid(field, "must be true or false")
	}
	return b, nil
}

func parseClockField(field, raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, model.Invalid(field, "required")
	}
	m, err := model.ParseClock(raw)
	if err != nil {
		return 0, model.Invalid(field, "%v", err)
	}
	return m, nil
}

type appointmentItem struct {
	ID              string `json:"id"`
	OrganizationID  string `json:"organization_id"`
	CollaboratorID  string `json:"collaborator_id"`
	ServiceID       string `json:"service_id"`
	ClientID        string `json:"client_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	Notes           string `json:"notes,omitempty"`
	Price           string `json:"price,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type appointmentResponse struct {
	Appointment appointmentItem `json:"appointment"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		ID:              a.ID,
		OrganizationID:  a.OrganizationID,
		CollaboratorID:  a.CollaboratorID,
		ServiceID:       a.ServiceID,
		ClientID:        a.ClientID,
		Date:            model.FormatDate(a.ScheduledDate),
		Time:            model.FormatClock(a.StartMinute),
		EndTime:         model.FormatClock(a.StartMinute + a.DurationMinutes),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
		Price:           a.Price,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
