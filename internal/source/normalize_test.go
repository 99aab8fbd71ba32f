package source_test

import (
	"testing"
	"time"

	"github.com/okarlsen/daytally/internal/model"
	"github.com/okarlsen/daytally/internal/source"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return ts
}

func TestNormalizeTimedEvents(t *testing.T) {
	start := mustParse(t, "2026-03-10T00:00:00Z")
	end := mustParse(t, "2026-03-11T00:00:00Z")

	raw := []source.RawEvent{
		{ExternalID: "a", Title: "standup", Start: "2026-03-10T09:00:00Z", End: "2026-03-10T09:30:00Z"},
		// Graph-style offset-free UTC stamp with fractional seconds.
		{ExternalID: "b", Title: "review", Start: "2026-03-10T14:00:00.0000000", End: "2026-03-10T15:00:00.0000000"},
		// Straddles the window end; gets clipped.
		{ExternalID: "c", Title: "late call", Start: "2026-03-10T23:30:00Z", End: "2026-03-11T00:30:00Z"},
		// Entirely outside the window; dropped without an error.
		{ExternalID: "d", Title: "tomorrow", Start: "2026-03-11T09:00:00Z", End: "2026-03-11T10:00:00Z"},
	}

	events, errs := source.Normalize("u1", model.EventSourceOutlook, raw, start, end, time.UTC)
	if len(errs) != 0 {
		t.Fatalf("unexpected item errors: %v", errs)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	if !events[1].StartAt.Equal(mustParse(t, "2026-03-10T14:00:00Z")) {
		t.Errorf("offset-free stamp parsed as %v", events[1].StartAt)
	}
	if !events[2].EndAt.Equal(end) {
		t.Errorf("straddling event end = %v, want clipped to %v", events[2].EndAt, end)
	}
	if events[0].ID != model.PlannedEventID("u1", model.EventSourceOutlook, "a") {
		t.Errorf("unstable event id %q", events[0].ID)
	}
}

func TestNormalizeAllDayAnchorsLocalMidnight(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}
	// During DST the user's March 10th is 07:00 UTC Mar 10 through
	// 07:00 UTC Mar 11.
	start := mustParse(t, "2026-03-10T07:00:00Z")
	end := mustParse(t, "2026-03-11T07:00:00Z")

	raw := []source.RawEvent{
		{ExternalID: "bday", Title: "Birthday", Start: "2026-03-10", End: "2026-03-11", AllDay: true},
	}

	events, errs := source.Normalize("u1", model.EventSourceAppleICS, raw, start, end, loc)
	if len(errs) != 0 {
		t.Fatalf("unexpected item errors: %v", errs)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	ev := events[0]
	if !ev.IsAllDay {
		t.Error("all-day flag lost")
	}
	if !ev.StartAt.Equal(start) || !ev.EndAt.Equal(end) {
		t.Errorf("all-day span = [%v, %v), want the local day [%v, %v)", ev.StartAt, ev.EndAt, start, end)
	}
}

func TestNormalizeCollectsItemErrors(t *testing.T) {
	start := mustParse(t, "2026-03-10T00:00:00Z")
	end := mustParse(t, "2026-03-11T00:00:00Z")

	raw := []source.RawEvent{
		{ExternalID: "ok", Title: "fine", Start: "2026-03-10T09:00:00Z", End: "2026-03-10T10:00:00Z"},
		{ExternalID: "", Title: "no id", Start: "2026-03-10T09:00:00Z", End: "2026-03-10T10:00:00Z"},
		{ExternalID: "bad-start", Title: "garbled", Start: "not a time", End: "2026-03-10T10:00:00Z"},
		{ExternalID: "inverted", Title: "backwards", Start: "2026-03-10T10:00:00Z", End: "2026-03-10T09:00:00Z"},
	}

	events, errs := source.Normalize("u1", model.EventSourceGoogle, raw, start, end, time.UTC)
	if len(events) != 1 || events[0].Title != "fine" {
		t.Fatalf("got events %+v, want only the valid one", events)
	}
	if len(errs) != 3 {
		t.Fatalf("got %d item errors, want 3: %v", len(errs), errs)
	}
}
