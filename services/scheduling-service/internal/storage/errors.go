package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
)

// ErrSlotTaken is the store-neutral form of an overlap constraint violation.
var ErrSlotTaken = errors.New("storage: appointment overlaps an active appointment")

const (
	constraintNoOverlap  = "appointments_no_overlap"
	constraintSlotUnique = "appointments_slot_unique"
)

// IsConflict reports whether err came from the appointment overlap guards: the exclusion
// constraint (23P01) or the unique slot index (23505).
func IsConflict(err error) bool {
	if errors.Is(err, ErrSlotTaken) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23P01":
		return pgErr.ConstraintName == "" || pgErr.ConstraintName == constraintNoOverlap
	case "23505":
		return pgErr.ConstraintName == constraintSlotUnique
	}
	return false
}

// IsRetryable reports serialization failures and deadlocks, which a fresh attempt of the same
// transaction may resolve.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}
