package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
)

func TestIsConflictClassifiesConstraints(t *testing.T) {
	if !IsConflict(&pgconn.PgError{Code: "23P01", ConstraintName: constraintNoOverlap}) {
		t.Fatal("exclusion violation should be a conflict")
	}
	if !IsConflict(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: constraintSlotUnique})) {
		t.Fatal("wrapped unique slot violation should be a conflict")
	}
	if IsConflict(&pgconn.PgError{Code: "23505", ConstraintName: "booking_idempotency_keys_pkey"}) {
		t.Fatal("unrelated unique violation must not be a conflict")
	}
	if !IsConflict(ErrSlotTaken) {
		t.Fatal("memory store sentinel should be a conflict")
	}
	if IsConflict(errors.New("boom")) {
		t.Fatal("generic error must not be a conflict")
	}
}

func TestIsRetryableAndNotFound(t *testing.T) {
	if !IsRetryable(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("serialization failure should be retryable")
	}
	if IsRetryable(&pgconn.PgError{Code: "23P01"}) {
		t.Fatal("constraint violation is not retryable")
	}
	if !IsNotFound(notFound(pgx.ErrNoRows)) || !errors.Is(notFound(pgx.ErrNoRows), model.ErrNotFound) {
		t.Fatal("no rows should map to model.ErrNotFound")
	}
}
