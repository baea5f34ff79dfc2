package timeline

import "time"

// WorkingDuration returns the elapsed working time between start and end
// under the given calendar. The result is never negative: end <= start
// yields zero. The walk is day-by-day so spans of many years stay exact;
// non-working days contribute nothing regardless of how much of the literal
// interval they cover.
//
// Pure function, no shared state; safe for concurrent use.
func WorkingDuration(start, end time.Time, cal Calendar) time.Duration {
	if !end.After(start) {
		return 0
	}
	start = start.In(cal.loc)
	end = end.In(cal.loc)

	var total time.Duration
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, cal.loc)
	for !day.After(end) {
		if cal.workingDay(day) {
			winStart := day.Add(time.Duration(cal.StartHour) * time.Hour)
			winEnd := day.Add(time.Duration(cal.EndHour) * time.Hour)
			lo := maxTime(start, winStart)
			hi := minTime(end, winEnd)
			if hi.After(lo) {
				total += hi.Sub(lo)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return total
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
