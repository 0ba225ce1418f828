// Package recurrence generates the successor occurrence of a completed
// recurring task.
package recurrence

import (
	"time"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

// NextDueDate adds one recurrence unit to base. Month and year steps clamp
// the day to the last day of the target month. An unknown pattern is treated
// as daily and reported with ok=false.
func NextDueDate(base time.Time, pattern domain.RecurrencePattern) (next time.Time, ok bool) {
	base = base.UTC()
	switch pattern {
	case domain.RecurrenceDaily:
		return base.AddDate(0, 0, 1), true
	case domain.RecurrenceWeekly:
		return base.AddDate(0, 0, 7), true
	case domain.RecurrenceMonthly:
		return addMonths(base, 1), true
	case domain.RecurrenceYearly:
		return addMonths(base, 12), true
	default:
		return base.AddDate(0, 0, 1), false
	}
}

// NextRemindAt keeps the parent's due-to-reminder offset. Both due and remind
// must be set on the parent, otherwise the successor has no reminder.
func NextRemindAt(due, remind *time.Time, nextDue time.Time) *time.Time {
	if due == nil || remind == nil {
		return nil
	}
	offset := due.Sub(*remind)
	r := nextDue.Add(-offset).UTC()
	return &r
}

// time.AddDate normalizes Jan 31 + 1 month to Mar 2; clamp instead.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	ty := y + total/12
	tm := time.Month(total%12 + 1)
	if last := daysIn(ty, tm); d > last {
		d = last
	}
	return time.Date(ty, tm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
