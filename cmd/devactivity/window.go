package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/piotr-liszka/open-dev-activity/internal/domain"
)

var relativeUnits = map[string]time.Duration{
	"minute":  time.Minute,
	"minutes": time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

// parseInstant accepts "now", relative phrases like "3 days ago", bare
// dates (YYYY-MM-DD, midnight UTC) and full RFC3339 timestamps.
func parseInstant(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if strings.EqualFold(s, "now") {
		return now, nil
	}
	if fields := strings.Fields(strings.ToLower(s)); len(fields) == 3 && fields[2] == "ago" {
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("bad relative amount %q", fields[0])
		}
		unit, ok := relativeUnits[fields[1]]
		if !ok {
			return time.Time{}, fmt.Errorf("unknown unit %q", fields[1])
		}
		return now.Add(-time.Duration(n) * unit), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (want now, \"N days ago\", YYYY-MM-DD or RFC3339)", s)
}

func parseWindow(fromStr, toStr string, now time.Time) (domain.Window, error) {
	from, err := parseInstant(fromStr, now)
	if err != nil {
		return domain.Window{}, fmt.Errorf("--from: %w", err)
	}
	to, err := parseInstant(toStr, now)
	if err != nil {
		return domain.Window{}, fmt.Errorf("--to: %w", err)
	}
	if !to.After(from) {
		return domain.Window{}, fmt.Errorf("window must satisfy from < to (got %s .. %s)", from, to)
	}
	return domain.Window{From: from.UTC(), To: to.UTC()}, nil
}
