// Package timecalc resolves local calendar days to half-open UTC intervals.
//
// All outward-facing intervals are [start, end) in UTC; "a day" always means
// local midnight to the next local midnight in the user's timezone, which is
// not 24 hours on DST transition days.
package timecalc

import (
	"time"
)

const dayLayout = "2006-01-02"

// LoadLocation resolves a named timezone, falling back to fallback and then
// UTC when the name is unknown. The caller validated the timezone when the
// account was configured, so an unknown name here is treated leniently
// rather than as a request failure.
func LoadLocation(name, fallback string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if fallback != "" {
		if loc, err := time.LoadLocation(fallback); err == nil {
			return loc
		}
	}
	return time.UTC
}

// DayBounds returns the UTC interval [start, end) covering the local calendar
// day named by day (YYYY-MM-DD) in loc. An empty or unparsable day resolves
// to "today" in loc, relative to now.
func DayBounds(now time.Time, day string, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	if day != "" {
		if d, err := time.ParseInLocation(dayLayout, day, loc); err == nil {
			local = d
		}
	}
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

// RangeBounds returns the UTC interval covering days consecutive local
// calendar days starting at the day named by startDay (or today when empty).
// The caller is responsible for validating days.
func RangeBounds(now time.Time, startDay string, days int, loc *time.Location) (time.Time, time.Time) {
	start, _ := DayBounds(now, startDay, loc)
	end := start.In(loc).AddDate(0, 0, days)
	return start, end.UTC()
}

// LocalDay formats t as a local date string (YYYY-MM-DD) in loc.
func LocalDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}
