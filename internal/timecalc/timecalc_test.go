package timecalc_test

import (
	"testing"
	"time"

	"github.com/okarlsen/daytally/internal/timecalc"
)

func TestDayBoundsSpansLocalDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		tz  string
		day string
	}{
		{"America/Los_Angeles", "2026-03-10"},
		{"Europe/Stockholm", "2026-03-10"},
		{"Asia/Tokyo", "2026-03-10"},
		{"UTC", "2026-03-10"},
	}
	for _, tt := range tests {
		loc, err := time.LoadLocation(tt.tz)
		if err != nil {
			t.Fatal(err)
		}
		start, end := timecalc.DayBounds(now, tt.day, loc)

		if got := end.Sub(start); got != 24*time.Hour {
			t.Errorf("%s: day length = %v, want 24h", tt.tz, got)
		}
		local := start.In(loc)
		if local.Hour() != 0 || local.Minute() != 0 || local.Second() != 0 {
			t.Errorf("%s: start converts to local %v, want midnight", tt.tz, local)
		}
		if got := local.Format("2006-01-02"); got != tt.day {
			t.Errorf("%s: start local day = %s, want %s", tt.tz, got, tt.day)
		}
	}
}

func TestDayBoundsDefaultsToToday(t *testing.T) {
	loc, _ := time.LoadLocation("America/Los_Angeles")
	// 06:30 UTC on Mar 11 is still Mar 10 in Los Angeles.
	now := time.Date(2026, 3, 11, 6, 30, 0, 0, time.UTC)

	start, _ := timecalc.DayBounds(now, "", loc)
	if got := timecalc.LocalDay(start, loc); got != "2026-03-10" {
		t.Errorf("today = %s, want 2026-03-10", got)
	}
}

func TestDayBoundsUnparsableDayFallsBack(t *testing.T) {
	loc, _ := time.LoadLocation("UTC")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	start, end := timecalc.DayBounds(now, "not-a-date", loc)
	wantStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantStart.AddDate(0, 0, 1)) {
		t.Errorf("end = %v", end)
	}
}

func TestRangeBounds(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Stockholm")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	start, end := timecalc.RangeBounds(now, "2026-03-10", 7, loc)
	if got := timecalc.LocalDay(start, loc); got != "2026-03-10" {
		t.Errorf("range start day = %s", got)
	}
	if got := timecalc.LocalDay(end, loc); got != "2026-03-17" {
		t.Errorf("range end day = %s, want 2026-03-17", got)
	}
	local := end.In(loc)
	if local.Hour() != 0 || local.Minute() != 0 {
		t.Errorf("range end not at local midnight: %v", local)
	}
}

func TestLoadLocationLeniency(t *testing.T) {
	if got := timecalc.LoadLocation("Mars/Olympus", "America/Los_Angeles"); got.String() != "America/Los_Angeles" {
		t.Errorf("fallback = %s", got)
	}
	if got := timecalc.LoadLocation("Mars/Olympus", "Also/Bogus"); got != time.UTC {
		t.Errorf("double fallback = %s, want UTC", got)
	}
	if got := timecalc.LoadLocation("Asia/Tokyo", "UTC"); got.String() != "Asia/Tokyo" {
		t.Errorf("valid zone = %s", got)
	}
}
