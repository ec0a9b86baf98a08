package model

import (
	"time"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/interval"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses hold a collaborator's time; only these participate in the overlap invariant.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return s, true
	}
	return "", false
}

func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Collaborator struct {
	ID             string
	OrganizationID string
	Name           string
	Role           string
	IsActive       bool
}

// WorkingHourRule opens [StartMinute, EndMinute) on Weekday (0 = Sunday).
type WorkingHourRule struct {
	ID             string
	OrganizationID string
	CollaboratorID string
	Weekday        int
	StartMinute    int
	EndMinute      int
	IsActive       bool
}

func (r WorkingHourRule) Interval() interval.Interval {
	return interval.New(r.StartMinute, r.EndMinute)
}

// ScheduleBlock closes part of a collaborator's day. All-day blocks carry no minutes.
type ScheduleBlock struct {
	ID             string
	OrganizationID string
	CollaboratorID string
	Date           time.Time
	StartMinute    *int
	EndMinute      *int
	IsAllDay       bool
	Reason         string
	CreatedAt      time.Time
}

func (b ScheduleBlock) Interval() interval.Interval {
	if b.IsAllDay || b.StartMinute == nil || b.EndMinute == nil {
		return interval.FullDay
	}
	return interval.New(*b.StartMinute, *b.EndMinute)
}

type Service struct {
	ID              string
	OrganizationID  string
	Name            string
	DurationMinutes int
	Price           string
	IsActive        bool
}

// MemberService marks a collaborator as able to perform a service.
type MemberService struct {
	OrganizationID string
	CollaboratorID string
	ServiceID      string
}

type Appointment struct {
	ID              string
	OrganizationID  string
	CollaboratorID  string
	ServiceID       string
	ClientID        string
	ScheduledDate   time.Time
	StartMinute     int
	DurationMinutes int
	Status          Status
	Notes           string
	Price           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) Interval() interval.Interval {
	return interval.New(a.StartMinute, a.StartMinute+a.DurationMinutes)
}
