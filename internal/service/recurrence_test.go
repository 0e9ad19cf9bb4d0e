package service

import (
	"testing"
	"time"

	"agent-scheduler/internal/model"
)

func ts(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 6, 30, 0, 0, time.UTC)
}

func TestNextOccurrenceDailyWeekly(t *testing.T) {
	base := ts(2024, time.January, 1)

	next, ok := NextOccurrence(base, model.RecurDaily)
	if !ok {
		t.Fatal("daily: expected a next occurrence")
	}
	if want := ts(2024, time.January, 2); !next.Equal(want) {
		t.Errorf("daily: got %v, want %v", next, want)
	}

	next, ok = NextOccurrence(base, model.RecurWeekly)
	if !ok {
		t.Fatal("weekly: expected a next occurrence")
	}
	if want := ts(2024, time.January, 8); !next.Equal(want) {
		t.Errorf("weekly: got %v, want %v", next, want)
	}
}

func TestNextOccurrenceMonthlyClampsMonthEnd(t *testing.T) {
	cases := []struct {
		name    string
		current time.Time
		want    time.Time
	}{
		{"jan 31 leap year", ts(2024, time.January, 31), ts(2024, time.February, 29)},
		{"jan 31 non-leap", ts(2023, time.January, 31), ts(2023, time.February, 28)},
		{"may 31 to june 30", ts(2024, time.May, 31), ts(2024, time.June, 30)},
		{"mid-month preserved", ts(2024, time.March, 15), ts(2024, time.April, 15)},
		{"december rolls year", ts(2024, time.December, 31), ts(2025, time.January, 31)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, ok := NextOccurrence(tc.current, model.RecurMonthly)
			if !ok {
				t.Fatal("expected a next occurrence")
			}
			if !next.Equal(tc.want) {
				t.Errorf("got %v, want %v", next, tc.want)
			}
		})
	}
}

func TestNextOccurrenceYearlyClampsLeapDay(t *testing.T) {
	next, ok := NextOccurrence(ts(2024, time.February, 29), model.RecurYearly)
	if !ok {
		t.Fatal("yearly: expected a next occurrence")
	}
	if want := ts(2025, time.February, 28); !next.Equal(want) {
		t.Errorf("yearly: got %v, want %v", next, want)
	}
}

func TestNextOccurrenceUnknownRule(t *testing.T) {
	base := ts(2024, time.January, 1)
	for _, rule := range []string{"", "unknown", "hourly", "DAILY"} {
		if _, ok := NextOccurrence(base, rule); ok {
			t.Errorf("rule %q: expected no next occurrence", rule)
		}
	}
}

func TestNextOccurrencePreservesClockAndLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	base := time.Date(2024, time.January, 31, 23, 45, 12, 99, loc)

	next, ok := NextOccurrence(base, model.RecurMonthly)
	if !ok {
		t.Fatal("expected a next occurrence")
	}
	if next.Location() != loc {
		t.Errorf("location changed: got %v", next.Location())
	}
	h, m, s := next.Clock()
	if h != 23 || m != 45 || s != 12 {
		t.Errorf("clock changed: got %02d:%02d:%02d", h, m, s)
	}
}
