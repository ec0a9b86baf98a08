package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/apptscheduler/libs/db"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/outbox"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the production Store. Admission transactions run SERIALIZABLE and are
// retried on serialization failures; the appointments table additionally carries an exclusion
// constraint and a unique slot index as a backstop.
type PostgresStore struct {
	pgReader
	pool       *db.Pool
	outbox     *outbox.Repository
	maxRetries int
}

func NewPostgresStore(pool *db.Pool, outboxRepo *outbox.Repository, maxRetries int) *PostgresStore {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &PostgresStore{
		pgReader:   pgReader{q: pool},
		pool:       pool,
		outbox:     outboxRepo,
		maxRetries: maxRetries,
	}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Short linear backoff; contention is per collaborator/day and clears quickly.
		time.Sleep(time.Duration(attempt*10) * time.Millisecond)
	}
	return fmt.Errorf("transaction retries exhausted: %w", err)
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{pgReader: pgReader{q: tx}, tx: tx, outbox: s.outbox}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListAppointments(ctx context.Context, orgID string, filter AppointmentFilter) ([]model.Appointment, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var date any
	if filter.Date != nil {
		date = *filter.Date
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE organization_id = $1
			AND ($2::date IS NULL OR scheduled_date = $2::date)
			AND ($3 = '' OR collaborator_id = $3)
		ORDER BY scheduled_date ASC, start_minute ASC, collaborator_id ASC
		LIMIT $4
	`, orgID, date, filter.CollaboratorID, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *PostgresStore) ListAllWorkingHours(ctx context.Context, orgID, collaboratorID string) ([]model.WorkingHourRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, collaborator_id, weekday, start_minute, end_minute, is_active
		FROM working_hour_rules
		WHERE organization_id = $1 AND collaborator_id = $2
		ORDER BY weekday ASC, start_minute ASC
	`, orgID, collaboratorID)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (s *PostgresStore) ReplaceWorkingHours(ctx context.Context, orgID, collaboratorID string, rules []model.WorkingHourRule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM working_hour_rules
		WHERE organization_id = $1 AND collaborator_id = $2
	`, orgID, collaboratorID); err != nil {
		return err
	}

	for i := range rules {
		r := &rules[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.OrganizationID = orgID
		r.CollaboratorID = collaboratorID
		if _, err := tx.Exec(ctx, `
			INSERT INTO working_hour_rules (id, organization_id, collaborator_id, weekday, start_minute, end_minute, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.ID, orgID, collaboratorID, r.Weekday, r.StartMinute, r.EndMinute, r.IsActive); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CreateScheduleBlock(ctx context.Context, block *model.ScheduleBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO schedule_blocks (id, organization_id, collaborator_id, block_date, start_minute, end_minute, is_all_day, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, block.ID, block.OrganizationID, block.CollaboratorID, block.Date, block.StartMinute, block.EndMinute, block.IsAllDay, block.Reason).
		Scan(&block.CreatedAt)
}

func (s *PostgresStore) DeleteScheduleBlock(ctx context.Context, orgID, blockID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM schedule_blocks
		WHERE organization_id = $1 AND id = $2
	`, orgID, blockID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpsertService(ctx context.Context, svc model.Service) error {
	price := svc.Price
	if price == "" {
		price = "0"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO services (organization_id, id, name, duration_minutes, price, is_active)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (organization_id, id) DO UPDATE
		SET name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			price = EXCLUDED.price,
			is_active = EXCLUDED.is_active,
			updated_at = now()
	`, svc.OrganizationID, svc.ID, svc.Name, svc.DurationMinutes, price, svc.IsActive)
	return err
}

func (s *PostgresStore) UpsertCollaborator(ctx context.Context, c model.Collaborator) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collaborators (organization_id, id, name, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, id) DO UPDATE
		SET name = EXCLUDED.name,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			updated_at = now()
	`, c.OrganizationID, c.ID, c.Name, c.Role, c.IsActive)
	return err
}

func (s *PostgresStore) SetMemberService(ctx context.Context, ms model.MemberService, offered bool) error {
	if !offered {
		_, err := s.pool.Exec(ctx, `
			DELETE FROM member_services
			WHERE organization_id = $1 AND collaborator_id = $2 AND service_id = $3
		`, ms.OrganizationID, ms.CollaboratorID, ms.ServiceID)
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO member_services (organization_id, collaborator_id, service_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, ms.OrganizationID, ms.CollaboratorID, ms.ServiceID)
	return err
}

type pgTx struct {
	pgReader
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *pgTx) LockIdempotencyKey(ctx context.Context, orgID, key string) (string, bool, error) {
	appointmentID, err := t.selectIdempotencyForUpdate(ctx, orgID, key)
	if err == nil {
		return appointmentID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	if _, err := t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (organization_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (organization_id, idempotency_key) DO NOTHING
	`, orgID, key); err != nil {
		return "", false, err
	}

	if _, err := t.selectIdempotencyForUpdate(ctx, orgID, key); err != nil {
		return "", false, err
	}
	return "", false, nil
}

func (t *pgTx) selectIdempotencyForUpdate(ctx context.Context, orgID, key string) (string, error) {
	var appointmentID string
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id, '')
		FROM booking_idempotency_keys
		WHERE organization_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, orgID, key).Scan(&appointmentID)
	return appointmentID, err
}

func (t *pgTx) FinalizeIdempotency(ctx context.Context, orgID, key, appointmentID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			updated_at = now()
		WHERE organization_id = $1 AND idempotency_key = $2
	`, orgID, key, appointmentID)
	return err
}

func (t *pgTx) InsertAppointment(ctx context.Context, appt *model.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	price := appt.Price
	if price == "" {
		price = "0"
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, organization_id, collaborator_id, service_id, client_id, scheduled_date, start_minute,
			 duration_minutes, status, notes, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric)
		RETURNING created_at, updated_at
	`, appt.ID, appt.OrganizationID, appt.CollaboratorID, appt.ServiceID, appt.ClientID, appt.ScheduledDate,
		appt.StartMinute, appt.DurationMinutes, string(appt.Status), appt.Notes, price).
		Scan(&appt.CreatedAt, &appt.UpdatedAt)
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, orgID, appointmentID string) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE organization_id = $1 AND id = $2
		FOR UPDATE
	`, orgID, appointmentID)
	appt, err := scanAppointment(row)
	return appt, notFound(err)
}

func (t *pgTx) UpdateAppointmentStatus(ctx context.Context, orgID, appointmentID string, status model.Status, notes *string) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
			notes = COALESCE($4, notes),
			updated_at = now()
		WHERE organization_id = $1 AND id = $2
		RETURNING `+appointmentColumns,
		orgID, appointmentID, string(status), notes)
	appt, err := scanAppointment(row)
	return appt, notFound(err)
}

func (t *pgTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

type pgReader struct {
	q querier
}

const appointmentColumns = `id, organization_id, collaborator_id, service_id, client_id, scheduled_date,
	start_minute, duration_minutes, status, notes, price::text, created_at, updated_at`

func (r pgReader) GetService(ctx context.Context, orgID, serviceID string) (model.Service, error) {
	var svc model.Service
	err := r.q.QueryRow(ctx, `
		SELECT id, organization_id, name, duration_minutes, price::text, is_active
		FROM services
		WHERE organization_id = $1 AND id = $2
	`, orgID, serviceID).Scan(&svc.ID, &svc.OrganizationID, &svc.Name, &svc.DurationMinutes, &svc.Price, &svc.IsActive)
	return svc, notFound(err)
}

func (r pgReader) GetCollaborator(ctx context.Context, orgID, collaboratorID string) (model.Collaborator, error) {
	var c model.Collaborator
	err := r.q.QueryRow(ctx, `
		SELECT id, organization_id, name, role, is_active
		FROM collaborators
		WHERE organization_id = $1 AND id = $2
	`, orgID, collaboratorID).Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Role, &c.IsActive)
	return c, notFound(err)
}

func (r pgReader) ListServiceCollaborators(ctx context.Context, orgID, serviceID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT ms.collaborator_id
		FROM member_services ms
		JOIN collaborators c ON c.organization_id = ms.organization_id AND c.id = ms.collaborator_id
		WHERE ms.organization_id = $1 AND ms.service_id = $2 AND c.is_active
		ORDER BY ms.collaborator_id ASC
	`, orgID, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r pgReader) OffersService(ctx context.Context, orgID, collaboratorID, serviceID string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM member_services ms
			JOIN collaborators c ON c.organization_id = ms.organization_id AND c.id = ms.collaborator_id
			WHERE ms.organization_id = $1 AND ms.collaborator_id = $2 AND ms.service_id = $3 AND c.is_active
		)
	`, orgID, collaboratorID, serviceID).Scan(&ok)
	return ok, err
}

func (r pgReader) ListWorkingHours(ctx context.Context, orgID, collaboratorID string, weekday int) ([]model.WorkingHourRule, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, organization_id, collaborator_id, weekday, start_minute, end_minute, is_active
		FROM working_hour_rules
		WHERE organization_id = $1 AND collaborator_id = $2 AND weekday = $3 AND is_active
		ORDER BY start_minute ASC
	`, orgID, collaboratorID, weekday)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r pgReader) ListScheduleBlocks(ctx context.Context, orgID, collaboratorID string, date time.Time) ([]model.ScheduleBlock, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, organization_id, collaborator_id, block_date, start_minute, end_minute, is_all_day, reason, created_at
		FROM schedule_blocks
		WHERE organization_id = $1 AND collaborator_id = $2 AND block_date = $3
		ORDER BY is_all_day DESC, start_minute ASC NULLS FIRST
	`, orgID, collaboratorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleBlock
	for rows.Next() {
		var b model.ScheduleBlock
		if err := rows.Scan(&b.ID, &b.OrganizationID, &b.CollaboratorID, &b.Date, &b.StartMinute, &b.EndMinute, &b.IsAllDay, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r pgReader) ListAppointmentsOn(ctx context.Context, orgID, collaboratorID string, date time.Time, statuses []model.Status) ([]model.Appointment, error) {
	if len(statuses) == 0 {
		statuses = model.ActiveStatuses
	}
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE organization_id = $1
			AND collaborator_id = $2
			AND scheduled_date = $3
			AND status = ANY($4)
		ORDER BY start_minute ASC
	`, orgID, collaboratorID, date, names)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r pgReader) GetAppointment(ctx context.Context, orgID, appointmentID string) (model.Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE organization_id = $1 AND id = $2
	`, orgID, appointmentID)
	appt, err := scanAppointment(row)
	return appt, notFound(err)
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.OrganizationID,
		&appt.CollaboratorID,
		&appt.ServiceID,
		&appt.ClientID,
		&appt.ScheduledDate,
		&appt.StartMinute,
		&appt.DurationMinutes,
		&status,
		&appt.Notes,
		&appt.Price,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func collectRules(rows pgx.Rows) ([]model.WorkingHourRule, error) {
	defer rows.Close()

	var out []model.WorkingHourRule
	for rows.Next() {
		var r model.WorkingHourRule
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.CollaboratorID, &r.Weekday, &r.StartMinute, &r.EndMinute, &r.IsActive); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
