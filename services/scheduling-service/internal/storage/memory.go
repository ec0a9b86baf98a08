package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/interval"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/outbox"
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// MemoryStore keeps everything in process. Transactions hold an exclusive lock, which makes
// them serializable, and are rolled back by restoring a snapshot. InsertAppointment enforces
// the same overlap rule as the PostgreSQL exclusion constraint.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState(), now: time.Now}
}

type memState struct {
	collaborators map[string]model.Collaborator
	services      map[string]model.Service
	members       map[string]struct{}
	rules         map[string]model.WorkingHourRule
	blocks        map[string]model.ScheduleBlock
	appointments  map[string]model.Appointment
	idempotency   map[string]string
	events        []outbox.Event
}

func newMemState() *memState {
	return &memState{
		collaborators: map[string]model.Collaborator{},
		services:      map[string]model.Service{},
		members:       map[string]struct{}{},
		rules:         map[string]model.WorkingHourRule{},
		blocks:        map[string]model.ScheduleBlock{},
		appointments:  map[string]model.Appointment{},
		idempotency:   map[string]string{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.collaborators {
		c.collaborators[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k := range s.members {
		c.members[k] = struct{}{}
	}
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.blocks {
		c.blocks[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	c.events = append([]outbox.Event(nil), s.events...)
	return c
}

func key(parts ...string) string {
	return strings.Join(parts, "\x00")
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.state.clone()
	if err := fn(ctx, &memTx{memReader: memReader{state: s.state}, store: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Events returns every outbox event committed so far.
func (s *MemoryStore) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event(nil), s.state.events...)
}

func (s *MemoryStore) reader() memReader {
	return memReader{state: s.state}
}

func (s *MemoryStore) GetService(ctx context.Context, orgID, serviceID string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetService(ctx, orgID, serviceID)
}

func (s *MemoryStore) GetCollaborator(ctx context.Context, orgID, collaboratorID string) (model.Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetCollaborator(ctx, orgID, collaboratorID)
}

func (s *MemoryStore) ListServiceCollaborators(ctx context.Context, orgID, serviceID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListServiceCollaborators(ctx, orgID, serviceID)
}

func (s *MemoryStore) OffersService(ctx context.Context, orgID, collaboratorID, serviceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().OffersService(ctx, orgID, collaboratorID, serviceID)
}

func (s *MemoryStore) ListWorkingHours(ctx context.Context, orgID, collaboratorID string, weekday int) ([]model.WorkingHourRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListWorkingHours(ctx, orgID, collaboratorID, weekday)
}

func (s *MemoryStore) ListScheduleBlocks(ctx context.Context, orgID, collaboratorID string, date time.Time) ([]model.ScheduleBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListScheduleBlocks(ctx, orgID, collaboratorID, date)
}

func (s *MemoryStore) ListAppointmentsOn(ctx context.Context, orgID, collaboratorID string, date time.Time, statuses []model.Status) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListAppointmentsOn(ctx, orgID, collaboratorID, date, statuses)
}

func (s *MemoryStore) GetAppointment(ctx context.Context, orgID, appointmentID string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetAppointment(ctx, orgID, appointmentID)
}

func (s *MemoryStore) ListAppointments(_ context.Context, orgID string, filter AppointmentFilter) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []model.Appointment
	for _, a := range s.state.appointments {
		if a.OrganizationID != orgID {
			continue
		}
		if filter.Date != nil && !a.ScheduledDate.Equal(*filter.Date) {
			continue
		}
		if filter.CollaboratorID != "" && a.CollaboratorID != filter.CollaboratorID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		if out[i].StartMinute != out[j].StartMinute {
			return out[i].StartMinute < out[j].StartMinute
		}
		return out[i].CollaboratorID < out[j].CollaboratorID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListAllWorkingHours(_ context.Context, orgID, collaboratorID string) ([]model.WorkingHourRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.WorkingHourRule
	for _, r := range s.state.rules {
		if r.OrganizationID == orgID && r.CollaboratorID == collaboratorID {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func (s *MemoryStore) ReplaceWorkingHours(_ context.Context, orgID, collaboratorID string, rules []model.WorkingHourRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.state.rules {
		if r.OrganizationID == orgID && r.CollaboratorID == collaboratorID {
			delete(s.state.rules, id)
		}
	}
	for i := range rules {
		r := &rules[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.OrganizationID = orgID
		r.CollaboratorID = collaboratorID
		s.state.rules[r.ID] = *r
	}
	return nil
}

func (s *MemoryStore) CreateScheduleBlock(_ context.Context, block *model.ScheduleBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	block.CreatedAt = s.now().UTC()
	s.state.blocks[block.ID] = *block
	return nil
}

func (s *MemoryStore) DeleteScheduleBlock(_ context.Context, orgID, blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.state.blocks[blockID]
	if !ok || b.OrganizationID != orgID {
		return model.ErrNotFound
	}
	delete(s.state.blocks, blockID)
	return nil
}

func (s *MemoryStore) UpsertService(_ context.Context, svc model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.services[key(svc.OrganizationID, svc.ID)] = svc
	return nil
}

func (s *MemoryStore) UpsertCollaborator(_ context.Context, c model.Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.collaborators[key(c.OrganizationID, c.ID)] = c
	return nil
}

func (s *MemoryStore) SetMemberService(_ context.Context, ms model.MemberService, offered bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(ms.OrganizationID, ms.CollaboratorID, ms.ServiceID)
	if offered {
		s.state.members[k] = struct{}{}
	} else {
		delete(s.state.members, k)
	}
	return nil
}

type memReader struct {
	state *memState
}

func (r memReader) GetService(_ context.Context, orgID, serviceID string) (model.Service, error) {
	svc, ok := r.state.services[key(orgID, serviceID)]
	if !ok {
		return model.Service{}, model.ErrNotFound
	}
	return svc, nil
}

func (r memReader) GetCollaborator(_ context.Context, orgID, collaboratorID string) (model.Collaborator, error) {
	c, ok := r.state.collaborators[key(orgID, collaboratorID)]
	if !ok {
		return model.Collaborator{}, model.ErrNotFound
	}
	return c, nil
}

func (r memReader) ListServiceCollaborators(_ context.Context, orgID, serviceID string) ([]string, error) {
	var out []string
	for _, c := range r.state.collaborators {
		if c.OrganizationID != orgID || !c.IsActive {
			continue
		}
		if _, ok := r.state.members[key(orgID, c.ID, serviceID)]; ok {
			out = append(out, c.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r memReader) OffersService(_ context.Context, orgID, collaboratorID, serviceID string) (bool, error) {
	c, ok := r.state.collaborators[key(orgID, collaboratorID)]
	if !ok || !c.IsActive {
		return false, nil
	}
	_, ok = r.state.members[key(orgID, collaboratorID, serviceID)]
	return ok, nil
}

func (r memReader) ListWorkingHours(_ context.Context, orgID, collaboratorID string, weekday int) ([]model.WorkingHourRule, error) {
	var out []model.WorkingHourRule
	for _, rule := range r.state.rules {
		if rule.OrganizationID == orgID && rule.CollaboratorID == collaboratorID && rule.Weekday == weekday && rule.IsActive {
			out = append(out, rule)
		}
	}
	sortRules(out)
	return out, nil
}

func (r memReader) ListScheduleBlocks(_ context.Context, orgID, collaboratorID string, date time.Time) ([]model.ScheduleBlock, error) {
	var out []model.ScheduleBlock
	for _, b := range r.state.blocks {
		if b.OrganizationID == orgID && b.CollaboratorID == collaboratorID && b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Interval().Start < out[j].Interval().Start
	})
	return out, nil
}

func (r memReader) ListAppointmentsOn(_ context.Context, orgID, collaboratorID string, date time.Time, statuses []model.Status) ([]model.Appointment, error) {
	if len(statuses) == 0 {
		statuses = model.ActiveStatuses
	}
	var out []model.Appointment
	for _, a := range r.state.appointments {
		if a.OrganizationID != orgID || a.CollaboratorID != collaboratorID || !a.ScheduledDate.Equal(date) {
			continue
		}
		if hasStatus(statuses, a.Status) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out, nil
}

func (r memReader) GetAppointment(_ context.Context, orgID, appointmentID string) (model.Appointment, error) {
	a, ok := r.state.appointments[appointmentID]
	if !ok || a.OrganizationID != orgID {
		return model.Appointment{}, model.ErrNotFound
	}
	return a, nil
}

type memTx struct {
	memReader
	store *MemoryStore
}

func (t *memTx) LockIdempotencyKey(_ context.Context, orgID, k string) (string, bool, error) {
	id, ok := t.state.idempotency[key(orgID, k)]
	if ok {
		return id, true, nil
	}
	t.state.idempotency[key(orgID, k)] = ""
	return "", false, nil
}

func (t *memTx) FinalizeIdempotency(_ context.Context, orgID, k, appointmentID string) error {
	t.state.idempotency[key(orgID, k)] = appointmentID
	return nil
}

func (t *memTx) InsertAppointment(_ context.Context, appt *model.Appointment) error {
	if appt.Status.Active() {
		for _, other := range t.state.appointments {
			if other.OrganizationID != appt.OrganizationID || other.CollaboratorID != appt.CollaboratorID {
				continue
			}
			if !other.ScheduledDate.Equal(appt.ScheduledDate) || !other.Status.Active() {
				continue
			}
			if interval.Overlaps(other.Interval(), appt.Interval()) {
				return ErrSlotTaken
			}
		}
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := t.store.now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	t.state.appointments[appt.ID] = *appt
	return nil
}

func (t *memTx) GetAppointmentForUpdate(ctx context.Context, orgID, appointmentID string) (model.Appointment, error) {
	return t.GetAppointment(ctx, orgID, appointmentID)
}

func (t *memTx) UpdateAppointmentStatus(_ context.Context, orgID, appointmentID string, status model.Status, notes *string) (model.Appointment, error) {
	a, ok := t.state.appointments[appointmentID]
	if !ok || a.OrganizationID != orgID {
		return model.Appointment{}, model.ErrNotFound
	}
	a.Status = status
	if notes != nil {
		a.Notes = *notes
	}
	a.UpdatedAt = t.store.now().UTC()
	t.state.appointments[appointmentID] = a
	return a, nil
}

func (t *memTx) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.state.events = append(t.state.events, evt)
	return nil
}

func hasStatus(set []model.Status, s model.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func sortRules(rules []model.WorkingHourRule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Weekday != rules[j].Weekday {
			return rules[i].Weekday < rules[j].Weekday
		}
		return rules[i].StartMinute < rules[j].StartMinute
	})
}
