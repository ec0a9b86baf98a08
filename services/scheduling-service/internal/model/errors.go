package model

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// ValidationError reports client-fixable input problems.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type ConflictType string

const (
	ConflictMemberBusy     ConflictType = "member_busy"
	ConflictNoAvailability ConflictType = "no_availability"
)

// ConflictError means the requested slot cannot be admitted; clients should re-query
// availability instead of resubmitting.
type ConflictError struct {
	Type    ConflictType
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func MemberBusy() error {
	return &ConflictError{Type: ConflictMemberBusy, Message: "slot already taken for this collaborator"}
}

func NoAvailability(msg string) error {
	if msg == "" {
		msg = "no professional available for this slot"
	}
	return &ConflictError{Type: ConflictNoAvailability, Message: msg}
}

type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot move appointment from %s to %s", e.From, e.To)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func AsConflict(err error) (*ConflictError, bool) {
	var c *ConflictError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

func IsIllegalTransition(err error) bool {
	var e *IllegalTransitionError
	return errors.As(err, &e)
}
