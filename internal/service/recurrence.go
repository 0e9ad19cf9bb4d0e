package service

import (
	"time"

	"agent-scheduler/internal/model"
)

// NextOccurrence maps the last occurrence and a recurrence rule to the next
// occurrence. The second return value is false when the rule yields no next
// occurrence (unknown or empty rule). The input is never mutated.
//
// Calendar steps clamp the day of month: Jan 31 + monthly lands on the last
// day of February, and Feb 29 + yearly lands on Feb 28 in a non-leap year.
func NextOccurrence(current time.Time, rule string) (time.Time, bool) {
	switch rule {
	case model.RecurDaily:
		return current.AddDate(0, 0, 1), true
	case model.RecurWeekly:
		return current.AddDate(0, 0, 7), true
	case model.RecurMonthly:
		return addCalendar(current, 0, 1), true
	case model.RecurYearly:
		return addCalendar(current, 1, 0), true
	default:
		return time.Time{}, false
	}
}

// addCalendar steps by whole years/months, clamping the day instead of
// letting time.AddDate normalize Jan 31 + 1 month into March.
func addCalendar(t time.Time, years, months int) time.Time {
	year, month, day := t.Date()
	month += time.Month(months)
	year += years
	// Normalize month overflow (December + 1).
	for month > 12 {
		month -= 12
		year++
	}
	if last := daysInMonth(month, year); day > last {
		day = last
	}
	hour, min, sec := t.Clock()
	return time.Date(year, month, day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	firstOfNextMonth := firstOfMonth.AddDate(0, 1, 0)
	lastOfMonth := firstOfNextMonth.AddDate(0, 0, -1)
	return lastOfMonth.Day()
}
