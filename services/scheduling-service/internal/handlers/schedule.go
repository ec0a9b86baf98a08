package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
)

// ScheduleHandler manages working hours and schedule blocks for staff.
type ScheduleHandler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewScheduleHandler(store storage.Store, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{store: store, logger: logger}
}

type workingHourItem struct {
	Weekday  int    `json:"weekday"`
	Start    string `json:"start"`
	End      string `json:"end"`
	IsActive *bool  `json:"is_active,omitempty"`
}

type workingHoursPayload struct {
	CollaboratorID string            `json:"collaborator_id"`
	Rules          []workingHourItem `json:"rules"`
}

func (h *ScheduleHandler) WorkingHours(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	orgID, err := organizationID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if r.Method == http.MethodPut {
		h.replaceWorkingHours(w, r, orgID)
		return
	}

	collaboratorID := strings.TrimSpace(r.URL.Query().Get("collaborator_id"))
	if collaboratorID == "" {
		writeError(w, r, h.logger, model.Invalid("collaborator_id", "required"))
		return
	}
	rules, err := h.store.ListAllWorkingHours(r.Context(), orgID, collaboratorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkingHoursPayload(collaboratorID, rules))
}

// replaceWorkingHours is a full replace: rules missing from the body are removed. At most one
// rule per weekday is accepted.
func (h *ScheduleHandler) replaceWorkingHours(w http.ResponseWriter, r *http.Request, orgID string) {
	var req workingHoursPayload
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.CollaboratorID = strings.TrimSpace(req.CollaboratorID)
	if req.CollaboratorID == "" {
		writeError(w, r, h.logger, model.Invalid("collaborator_id", "required"))
		return
	}
	if err := h.requireCollaborator(r.Context(), orgID, req.CollaboratorID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	seen := map[int]bool{}
	rules := make([]model.WorkingHourRule, 0, len(req.Rules))
	for _, item := range req.Rules {
		if item.Weekday < 0 || item.Weekday > 6 {
			writeError(w, r, h.logger, model.Invalid("weekday", "must be 0 (Sunday) to 6"))
			return
		}
		if seen[item.Weekday] {
			writeError(w, r, h.logger, model.Invalid("weekday", "duplicate rule for weekday %d", item.Weekday))
			return
		}
		seen[item.Weekday] = true
		start, err := parseClockField("start", item.Start)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		end, err := parseClockField("end", item.End)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if start >= end {
			writeError(w, r, h.logger, model.Invalid("end", "must be after start"))
			return
		}
		rules = append(rules, model.WorkingHourRule{
			Weekday:     item.Weekday,
			StartMinute: start,
			EndMinute:   end,
			IsActive:    item.IsActive == nil || *item.IsActive,
		})
	}

	if err := h.store.ReplaceWorkingHours(r.Context(), orgID, req.CollaboratorID, rules); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkingHoursPayload(req.CollaboratorID, rules))
}

func toWorkingHoursPayload(collaboratorID string, rules []model.WorkingHourRule) workingHoursPayload {
	out := workingHoursPayload{CollaboratorID: collaboratorID, Rules: make([]workingHourItem, 0, len(rules))}
	for _, rule := range rules {
		active := rule.IsActive
		out.Rules = append(out.Rules, workingHourItem{
			Weekday:  rule.Weekday,
			Start:    model.FormatClock(rule.StartMinute),
			End:      model.FormatClock(rule.EndMinute),
			IsActive: &active,
		})
	}
	return out
}

type scheduleBlockItem struct {
	ID             string `json:"id,omitempty"`
	CollaboratorID string `json:"collaborator_id"`
	Date           string `json:"date"`
	Start          string `json:"start,omitempty"`
	End            string `json:"end,omitempty"`
	IsAllDay       bool   `json:"is_all_day"`
	Reason         string `json:"reason,omitempty"`
}

type scheduleBlocksResponse struct {
	Blocks []scheduleBlockItem `json:"blocks"`
}

func (h *ScheduleHandler) ScheduleBlocks(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost, http.MethodDelete) {
		return
	}
	orgID, err := organizationID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.createBlock(w, r, orgID)
	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeError(w, r, h.logger, model.Invalid("id", "required"))
			return
		}
		if err := h.store.DeleteScheduleBlock(r.Context(), orgID, id); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.listBlocks(w, r, orgID)
	}
}

func (h *ScheduleHandler) listBlocks(w http.ResponseWriter, r *http.Request, orgID string) {
	q := r.URL.Query()
	collaboratorID := strings.TrimSpace(q.Get("collaborator_id"))
	if collaboratorID == "" {
		writeError(w, r, h.logger, model.Invalid("collaborator_id", "required"))
		return
	}
	date, err := parseDateField("date", q.Get("date"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	blocks, err := h.store.ListScheduleBlocks(r.Context(), orgID, collaboratorID, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]scheduleBlockItem, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, toScheduleBlockItem(b))
	}
	writeJSON(w, http.StatusOK, scheduleBlocksResponse{Blocks: items})
}

func (h *ScheduleHandler) createBlock(w http.ResponseWriter, r *http.Request, orgID string) {
	var req scheduleBlockItem
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	block := model.ScheduleBlock{
		OrganizationID: orgID,
		CollaboratorID: strings.TrimSpace(req.CollaboratorID),
		IsAllDay:       req.IsAllDay,
		Reason:         strings.TrimSpace(req.Reason),
	}
	if block.CollaboratorID == "" {
		writeError(w, r, h.logger, model.Invalid("collaborator_id", "required"))
		return
	}
	if err := h.requireCollaborator(r.Context(), orgID, block.CollaboratorID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	block.Date = date

	if !block.IsAllDay {
		start, err := parseClockField("start", req.Start)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		end, err := parseClockField("end", req.End)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if start >= end {
			writeError(w, r, h.logger, model.Invalid("end", "must be after start"))
			return
		}
		block.StartMinute, block.EndMinute = &start, &end
	}

	if err := h.store.CreateScheduleBlock(r.Context(), &block); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleBlockItem(block))
}

func (h *ScheduleHandler) requireCollaborator(ctx context.Context, orgID, collaboratorID string) error {
	if _, err := h.store.GetCollaborator(ctx, orgID, collaboratorID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Invalid("collaborator_id", "unknown collaborator")
		}
		return err
	}
	return nil
}

func toScheduleBlockItem(b model.ScheduleBlock) scheduleBlockItem {
	item := scheduleBlockItem{
		ID:             b.ID,
		CollaboratorID: b.CollaboratorID,
		Date:           model.FormatDate(b.Date),
		IsAllDay:       b.IsAllDay,
		Reason:         b.Reason,
	}
	if !b.IsAllDay && b.StartMinute != nil && b.EndMinute != nil {
		item.Start = model.FormatClock(*b.StartMinute)
		item.End = model.FormatClock(*b.EndMinute)
	}
	return item
}
