package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when a workflow schedule cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// Schedules use the standard 5-field cron format (minute hour day month weekday).
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a cron expression. An empty expression is valid and
// means the workflow only runs on demand.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}

	_, err := scheduleParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, expr, err)
	}

	return nil
}

// NextRunAt returns the first activation of the workflow schedule after its
// last run, or after creation when it never ran. ok is false for workflows
// without a schedule.
func (w *Workflow) NextRunAt() (next time.Time, ok bool, err error) {
	reference := w.CreatedAt
	if w.LastRunAt != nil {
		reference = *w.LastRunAt
	}

	return w.ActivationAfter(reference)
}

// ActivationAfter returns the first activation of the schedule strictly
// after t.
func (w *Workflow) ActivationAfter(t time.Time) (next time.Time, ok bool, err error) {
	if w.Schedule == "" {
		return time.Time{}, false, nil
	}

	schedule, err := scheduleParser.Parse(w.Schedule)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, w.Schedule, err)
	}

	return schedule.Next(t), true, nil
}

// IsDue checks if a scheduled, active mirror workflow should run at now.
func (w *Workflow) IsDue(now time.Time) bool {
	if !w.IsMirror() || !w.IsActive() {
		return false
	}

	next, ok, err := w.NextRunAt()
	if err != nil || !ok {
		return false
	}

	return !next.After(now)
}
