package timeline

import (
	"testing"
	"time"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
)

func testCalendar(t *testing.T, holidays ...string) Calendar {
	t.Helper()
	cal, err := NewCalendar(config.Calendar{
		StartHour: 9,
		EndHour:   17,
		Weekdays:  []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		Holidays:  holidays,
		Timezone:  "UTC",
	})
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	return cal
}

func ts(t *testing.T, v string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t.Fatalf("parse %s: %v", v, err)
	}
	return out
}

func TestWorkingDuration_ZeroAndNegativeSpans(t *testing.T) {
	cal := testCalendar(t)
	at := ts(t, "2026-08-26T10:00:00Z")
	if d := WorkingDuration(at, at, cal); d != 0 {
		t.Fatalf("equal instants: want 0, got %v", d)
	}
	if d := WorkingDuration(at, at.Add(-time.Hour), cal); d != 0 {
		t.Fatalf("end before start: want 0, got %v", d)
	}
}

func TestWorkingDuration_FullWorkingDay(t *testing.T) {
	cal := testCalendar(t)
	// 24h literal span covering Wednesday yields exactly the 8h window.
	d := WorkingDuration(ts(t, "2026-08-26T00:00:00Z"), ts(t, "2026-08-27T00:00:00Z"), cal)
	if d != 8*time.Hour {
		t.Fatalf("wednesday: want 8h, got %v", d)
	}
	// Same literal span starting Saturday yields zero.
	d = WorkingDuration(ts(t, "2026-08-29T00:00:00Z"), ts(t, "2026-08-30T00:00:00Z"), cal)
	if d != 0 {
		t.Fatalf("saturday: want 0, got %v", d)
	}
}

func TestWorkingDuration_WeekendBridge(t *testing.T) {
	cal := testCalendar(t)
	// Friday 16:00 -> Monday 10:00: 1h Friday + 1h Monday.
	d := WorkingDuration(ts(t, "2026-08-28T16:00:00Z"), ts(t, "2026-08-31T10:00:00Z"), cal)
	if d != 2*time.Hour {
		t.Fatalf("weekend bridge: want 2h, got %v", d)
	}
}

func TestWorkingDuration_PartialDay(t *testing.T) {
	cal := testCalendar(t)
	d := WorkingDuration(ts(t, "2026-08-26T10:30:00Z"), ts(t, "2026-08-26T11:00:00Z"), cal)
	if d != 30*time.Minute {
		t.Fatalf("partial day: want 30m, got %v", d)
	}
	// Span starting before and ending after the window clips to it.
	d = WorkingDuration(ts(t, "2026-08-26T06:00:00Z"), ts(t, "2026-08-26T22:00:00Z"), cal)
	if d != 8*time.Hour {
		t.Fatalf("clipped day: want 8h, got %v", d)
	}
}

func TestWorkingDuration_Holiday(t *testing.T) {
	cal := testCalendar(t, "2026-08-26")
	d := WorkingDuration(ts(t, "2026-08-26T00:00:00Z"), ts(t, "2026-08-27T00:00:00Z"), cal)
	if d != 0 {
		t.Fatalf("holiday: want 0, got %v", d)
	}
	// The surrounding days still count.
	d = WorkingDuration(ts(t, "2026-08-25T00:00:00Z"), ts(t, "2026-08-28T00:00:00Z"), cal)
	if d != 16*time.Hour {
		t.Fatalf("around holiday: want 16h, got %v", d)
	}
}

func TestWorkingDuration_FullWeek(t *testing.T) {
	cal := testCalendar(t)
	// Monday 00:00 -> next Monday 00:00: five 8h days.
	d := WorkingDuration(ts(t, "2026-08-24T00:00:00Z"), ts(t, "2026-08-31T00:00:00Z"), cal)
	if d != 40*time.Hour {
		t.Fatalf("full week: want 40h, got %v", d)
	}
}

func TestNewCalendar_Validation(t *testing.T) {
	cases := []struct {
		name string
		cc   config.Calendar
	}{
		{"start after end", config.Calendar{StartHour: 17, EndHour: 9, Weekdays: []string{"Monday"}}},
		{"equal hours", config.Calendar{StartHour: 9, EndHour: 9, Weekdays: []string{"Monday"}}},
		{"no weekdays", config.Calendar{StartHour: 9, EndHour: 17}},
		{"bad weekday", config.Calendar{StartHour: 9, EndHour: 17, Weekdays: []string{"Caturday"}}},
		{"bad holiday", config.Calendar{StartHour: 9, EndHour: 17, Weekdays: []string{"Monday"}, Holidays: []string{"26/08/2026"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCalendar(tc.cc); err == nil {
				t.Fatalf("expected error for %+v", tc.cc)
			}
		})
	}
}
