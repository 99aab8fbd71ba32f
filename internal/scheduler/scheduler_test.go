package scheduler

import (
	"testing"
	"time"
)

func TestNextAlignedTick(t *testing.T) {
	tests := []struct {
		now      string
		interval time.Duration
		want     string
	}{
		{"2026-03-10T09:07:00Z", time.Hour, "2026-03-10T10:00:00Z"},
		{"2026-03-10T09:00:00Z", time.Hour, "2026-03-10T10:00:00Z"},
		{"2026-03-10T09:07:00Z", 15 * time.Minute, "2026-03-10T09:15:00Z"},
		{"2026-03-10T09:59:30Z", 30 * time.Minute, "2026-03-10T10:00:00Z"},
		{"2026-03-10T23:45:00Z", time.Hour, "2026-03-11T00:00:00Z"},
	}

	for _, tt := range tests {
		now, err := time.Parse(time.RFC3339, tt.now)
		if err != nil {
			t.Fatal(err)
		}
		want, _ := time.Parse(time.RFC3339, tt.want)
		if got := nextAlignedTick(now, tt.interval); !got.Equal(want) {
			t.Errorf("nextAlignedTick(%s, %s) = %v, want %v", tt.now, tt.interval, got, want)
		}
	}
}
