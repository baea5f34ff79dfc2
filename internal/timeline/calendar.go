package timeline

import (
	"fmt"
	"time"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
)

// Calendar is the immutable business calendar used for working-time math.
// Built once at startup from configuration and shared read-only afterwards.
type Calendar struct {
	StartHour int
	EndHour   int

	weekdays map[time.Weekday]bool
	holidays map[string]bool
	loc      *time.Location
}

var dayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func NewCalendar(cc config.Calendar) (Calendar, error) {
	if cc.StartHour < 0 || cc.EndHour > 23 || cc.StartHour >= cc.EndHour {
		return Calendar{}, fmt.Errorf("calendar: invalid hours %d..%d", cc.StartHour, cc.EndHour)
	}
	weekdays := make(map[time.Weekday]bool, len(cc.Weekdays))
	for _, name := range cc.Weekdays {
		wd, ok := dayNames[normalizeDay(name)]
		if !ok {
			return Calendar{}, fmt.Errorf("calendar: unknown weekday %q", name)
		}
		weekdays[wd] = true
	}
	if len(weekdays) == 0 {
		return Calendar{}, fmt.Errorf("calendar: empty working weekday set")
	}
	holidays := make(map[string]bool, len(cc.Holidays))
	for _, h := range cc.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return Calendar{}, fmt.Errorf("calendar: holiday %q: %w", h, err)
		}
		holidays[h] = true
	}
	tz := cc.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Calendar{}, fmt.Errorf("calendar: timezone %q: %w", tz, err)
	}
	return Calendar{
		StartHour: cc.StartHour,
		EndHour:   cc.EndHour,
		weekdays:  weekdays,
		holidays:  holidays,
		loc:       loc,
	}, nil
}

// MustCalendar is for tests and defaults where the input is known-good.
func MustCalendar(cc config.Calendar) Calendar {
	cal, err := NewCalendar(cc)
	if err != nil {
		panic(err)
	}
	return cal
}

func normalizeDay(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if r == ' ' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// workingDay reports whether the calendar day containing t counts at all.
func (c Calendar) workingDay(t time.Time) bool {
	if !c.weekdays[t.Weekday()] {
		return false
	}
	return !c.holidays[t.Format("2006-01-02")]
}
