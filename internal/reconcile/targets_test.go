package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/okarlsen/daytally/internal/store"
)

func setTarget(t *testing.T, db *store.DB, category, targetType string, hours float64) store.Target {
	t.Helper()
	target := store.Target{UserID: "u1", Category: category, Type: targetType, Value: hours}
	if err := db.CreateTarget(&target); err != nil {
		t.Fatalf("creating target: %v", err)
	}
	return target
}

func TestTargetReport(t *testing.T) {
	now := mustParse(t, "2026-03-17T12:00:00Z")
	svc, db := newTestService(t, "UTC", now)

	logEntry(t, db, "2026-03-10T09:00:00Z", "2026-03-10T11:00:00Z", "team standup")
	logEntry(t, db, "2026-03-10T18:00:00Z", "2026-03-10T19:00:00Z", "gym")
	logEntry(t, db, "2026-03-11T18:00:00Z", "2026-03-11T19:00:00Z", "gym")

	setTarget(t, db, "Exercise", store.TargetHoursPerDay, 1)
	setTarget(t, db, "Social", store.TargetMaxHours, 2)
	setTarget(t, db, "Work", store.TargetHoursPerWeek, 7)

	report, err := svc.TargetReport(context.Background(), "u1", "2026-03-10", 7)
	if err != nil {
		t.Fatalf("target report: %v", err)
	}
	if len(report.Items) != 3 {
		t.Fatalf("items = %+v, want 3", report.Items)
	}

	exercise := report.Items[0]
	if exercise.Target.Category != "Exercise" {
		t.Fatalf("items not ordered by category: %+v", report.Items)
	}
	if exercise.DaysMet != 2 || exercise.DaysTotal != 7 {
		t.Errorf("exercise days = %d/%d, want 2/7", exercise.DaysMet, exercise.DaysTotal)
	}
	if exercise.Status != TargetBehind {
		t.Errorf("exercise status = %q, want behind", exercise.Status)
	}

	social := report.Items[1]
	if social.ActualHours != 0 || social.Status != TargetAhead {
		t.Errorf("social = %+v, want 0h under the ceiling", social)
	}

	work := report.Items[2]
	// Both Work buckets count toward a plain "Work" target.
	if work.ActualHours != 2 {
		t.Errorf("work actual = %v, want 2h", work.ActualHours)
	}
	if work.ExpectedHours != 7 || work.Status != TargetBehind {
		t.Errorf("work = %+v, want 7h expected and behind", work)
	}
}

func TestTargetReportValidation(t *testing.T) {
	now := mustParse(t, "2026-03-10T12:00:00Z")
	svc, _ := newTestService(t, "UTC", now)

	if _, err := svc.TargetReport(context.Background(), "u1", "2026-03-10", 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
