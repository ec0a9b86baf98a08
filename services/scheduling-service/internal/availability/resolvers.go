package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/interval"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
)

// WorkingHours returns the collaborator's open intervals for the weekday of date. No active
// rule means no open time. Several rules on one weekday are merged rather than rejected.
func WorkingHours(ctx context.Context, r storage.Reader, orgID, collaboratorID string, date time.Time) ([]interval.Interval, error) {
	rules, err := r.ListWorkingHours(ctx, orgID, collaboratorID, int(date.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("list working hours: %w", err)
	}
	open := make([]interval.Interval, 0, len(rules))
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		open = append(open, rule.Interval())
	}
	return interval.Union(open), nil
}

// Blocks returns the closed intervals of date. An all-day block yields the whole day.
func Blocks(ctx context.Context, r storage.Reader, orgID, collaboratorID string, date time.Time) ([]interval.Interval, error) {
	blocks, err := r.ListScheduleBlocks(ctx, orgID, collaboratorID, date)
	if err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	closed := make([]interval.Interval, 0, len(blocks))
	for _, b := range blocks {
		closed = append(closed, b.Interval())
	}
	return interval.Union(closed), nil
}

// Occupancy returns one interval per appointment in statuses (default pending and confirmed).
func Occupancy(ctx context.Context, r storage.Reader, orgID, collaboratorID string, date time.Time, statuses []model.Status) ([]interval.Interval, error) {
	if len(statuses) == 0 {
		statuses = model.ActiveStatuses
	}
	appts, err := r.ListAppointmentsOn(ctx, orgID, collaboratorID, date, statuses)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	busy := make([]interval.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, a.Interval())
	}
	return busy, nil
}

// Day is one collaborator's resolved schedule for a date.
type Day struct {
	Hours []interval.Interval
	// Open is Hours minus Blocks.
	Open []interval.Interval
	Busy []interval.Interval
	// Free is Open minus Busy.
	Free []interval.Interval
}

func ResolveDay(ctx context.Context, r storage.Reader, orgID, collaboratorID string, date time.Time, statuses []model.Status) (Day, error) {
	hours, err := WorkingHours(ctx, r, orgID, collaboratorID, date)
	if err != nil {
		return Day{}, err
	}
	if len(hours) == 0 {
		return Day{}, nil
	}
	blocks, err := Blocks(ctx, r, orgID, collaboratorID, date)
	if err != nil {
		return Day{}, err
	}
	busy, err := Occupancy(ctx, r, orgID, collaboratorID, date, statuses)
	if err != nil {
		return Day{}, err
	}
	open := interval.SubtractAll(hours, blocks)
	return Day{
		Hours: hours,
		Open:  open,
		Busy:  busy,
		Free:  interval.SubtractAll(open, busy),
	}, nil
}

type Fit int

const (
	FitOK Fit = iota
	// FitClosed: the interval is outside working hours or hits a block.
	FitClosed
	// FitBusy: the interval is open but overlaps an active appointment.
	FitBusy
)

// CheckFit classifies want against the collaborator's schedule on date.
func CheckFit(ctx context.Context, r storage.Reader, orgID, collaboratorID string, date time.Time, want interval.Interval) (Fit, error) {
	day, err := ResolveDay(ctx, r, orgID, collaboratorID, date, model.ActiveStatuses)
	if err != nil {
		return FitClosed, err
	}
	if !interval.ContainedInAny(day.Open, want) {
		return FitClosed, nil
	}
	if interval.OverlapsAny(day.Busy, want) {
		return FitBusy, nil
	}
	return FitOK, nil
}
