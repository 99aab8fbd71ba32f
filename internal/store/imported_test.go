package store

import (
	"testing"
	"time"

	"github.com/okarlsen/daytally/internal/model"
)

func icsEvent(t *testing.T, externalID, title, start, end string) ImportedEvent {
	t.Helper()
	return ImportedEvent{
		Source:             model.EventSourceAppleICS,
		ExternalID:         externalID,
		SourceCalendarName: "Personal",
		Title:              title,
		StartAt:            mustParse(t, start),
		EndAt:              mustParse(t, end),
	}
}

func TestReplaceImportedIsIdempotent(t *testing.T) {
	db := testDB(t)
	start := mustParse(t, "2026-03-10T00:00:00Z")
	end := mustParse(t, "2026-03-11T00:00:00Z")

	events := []ImportedEvent{
		icsEvent(t, "ev-1", "standup", "2026-03-10T09:00:00Z", "2026-03-10T09:30:00Z"),
		icsEvent(t, "ev-2", "review", "2026-03-10T14:00:00Z", "2026-03-10T15:00:00Z"),
	}

	res, err := db.ReplaceImported("u1", model.EventSourceAppleICS, start, end, events)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if res.Upserted != 2 || res.Deleted != 0 {
		t.Errorf("first sync = %+v, want 2 upserted, 0 deleted", res)
	}

	first, err := db.ListImported("u1", start, end)
	if err != nil {
		t.Fatalf("listing after first sync: %v", err)
	}

	if _, err := db.ReplaceImported("u1", model.EventSourceAppleICS, start, end, events); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	second, err := db.ListImported("u1", start, end)
	if err != nil {
		t.Fatalf("listing after second sync: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("row count changed on replay: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("row %d id changed on replay: %s -> %s", i, first[i].ID, second[i].ID)
		}
		if first[i].Title != second[i].Title || !first[i].StartAt.Equal(second[i].StartAt) {
			t.Errorf("row %d fields changed on replay", i)
		}
	}
}

func TestReplaceImportedDropsRemovedEvents(t *testing.T) {
	db := testDB(t)
	start := mustParse(t, "2026-03-10T00:00:00Z")
	end := mustParse(t, "2026-03-11T00:00:00Z")

	_, err := db.ReplaceImported("u1", model.EventSourceAppleICS, start, end, []ImportedEvent{
		icsEvent(t, "ev-1", "standup", "2026-03-10T09:00:00Z", "2026-03-10T09:30:00Z"),
		icsEvent(t, "ev-2", "cancelled mtg", "2026-03-10T11:00:00Z", "2026-03-10T12:00:00Z"),
	})
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}

	res, err := db.ReplaceImported("u1", model.EventSourceAppleICS, start, end, []ImportedEvent{
		icsEvent(t, "ev-1", "standup", "2026-03-10T09:00:00Z", "2026-03-10T09:30:00Z"),
	})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if res.Deleted != 2 || res.Upserted != 1 {
		t.Errorf("second sync = %+v, want 2 deleted, 1 upserted", res)
	}

	left, err := db.ListImported("u1", start, end)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(left) != 1 || left[0].ExternalID != "ev-1" {
		t.Errorf("survivors = %+v, want only ev-1", left)
	}
}

func TestReplaceImportedScopedToSourceAndWindow(t *testing.T) {
	db := testDB(t)
	start := mustParse(t, "2026-03-10T00:00:00Z")
	end := mustParse(t, "2026-03-11T00:00:00Z")

	// Same window, different source; must survive the ICS sync.
	other := ImportedEvent{
		Source:     model.EventSourceAppleEventKit,
		ExternalID: "ek-1_2026-03-10T10:00:00Z",
		Title:      "gym",
		StartAt:    mustParse(t, "2026-03-10T10:00:00Z"),
		EndAt:      mustParse(t, "2026-03-10T11:00:00Z"),
	}
	if err := db.UpsertImported("u1", other); err != nil {
		t.Fatalf("upserting eventkit event: %v", err)
	}
	// Same source, outside the window; must also survive.
	if err := db.UpsertImported("u1", icsEvent(t, "ev-old", "yesterday", "2026-03-09T09:00:00Z", "2026-03-09T10:00:00Z")); err != nil {
		t.Fatalf("upserting out-of-window event: %v", err)
	}

	if _, err := db.ReplaceImported("u1", model.EventSourceAppleICS, start, end, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}

	all, err := db.ListImported("u1", mustParse(t, "2026-03-09T00:00:00Z"), mustParse(t, "2026-03-12T00:00:00Z"))
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(all), all)
	}
}

func TestImportStatus(t *testing.T) {
	db := testDB(t)
	start := mustParse(t, "2026-03-10T00:00:00Z")
	end := mustParse(t, "2026-03-11T00:00:00Z")

	_, err := db.ReplaceImported("u1", model.EventSourceAppleICS, start, end, []ImportedEvent{
		icsEvent(t, "ev-1", "standup", "2026-03-10T09:00:00Z", "2026-03-10T09:30:00Z"),
		icsEvent(t, "ev-2", "review", "2026-03-10T14:00:00Z", "2026-03-10T15:00:00Z"),
	})
	if err != nil {
		t.Fatalf("syncing: %v", err)
	}

	status, err := db.ImportStatus("u1")
	if err != nil {
		t.Fatalf("reading status: %v", err)
	}
	got, ok := status[model.EventSourceAppleICS]
	if !ok {
		t.Fatal("no status for apple_ics")
	}
	if got.Count != 2 {
		t.Errorf("count = %d, want 2", got.Count)
	}
	if time.Since(got.LastSyncedAt) > time.Minute {
		t.Errorf("stale last sync time: %v", got.LastSyncedAt)
	}
}
