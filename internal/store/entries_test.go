package store

import (
	"testing"
	"time"

	"github.com/okarlsen/daytally/internal/model"
)

func insertEntryAt(t *testing.T, db *DB, start, end, created string, title, linked string) model.LoggedEntry {
	t.Helper()
	e := model.LoggedEntry{
		UserID:               "u1",
		StartAt:              mustParse(t, start),
		EndAt:                mustParse(t, end),
		Title:                title,
		CategoryID:           firstCategoryID(t, db),
		Source:               model.SourceManual,
		LinkedPlannedEventID: linked,
		CreatedAt:            mustParse(t, created),
	}
	if err := db.InsertEntry(&e); err != nil {
		t.Fatalf("inserting entry: %v", err)
	}
	return e
}

func firstCategoryID(t *testing.T, db *DB) string {
	t.Helper()
	cats, err := db.ListCategories("u1")
	if err != nil || len(cats) == 0 {
		t.Fatalf("listing categories: %v", err)
	}
	return cats[0].ID
}

func TestListEntriesRangeIsHalfOpen(t *testing.T) {
	db := testDB(t)

	// Ends exactly at range start: excluded.
	insertEntryAt(t, db, "2026-03-10T07:00:00Z", "2026-03-10T08:00:00Z", "2026-03-10T08:00:00Z", "before", "")
	// Starts exactly at range end: excluded.
	insertEntryAt(t, db, "2026-03-11T08:00:00Z", "2026-03-11T09:00:00Z", "2026-03-11T09:00:00Z", "after", "")
	// Straddles the range start: included.
	insertEntryAt(t, db, "2026-03-10T07:30:00Z", "2026-03-10T09:00:00Z", "2026-03-10T09:00:00Z", "straddle", "")
	// Fully inside: included.
	insertEntryAt(t, db, "2026-03-10T12:00:00Z", "2026-03-10T13:00:00Z", "2026-03-10T13:00:00Z", "inside", "")

	got, err := db.ListEntries("u1", mustParse(t, "2026-03-10T08:00:00Z"), mustParse(t, "2026-03-11T08:00:00Z"))
	if err != nil {
		t.Fatalf("listing entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(got), got)
	}
	if got[0].Title != "straddle" || got[1].Title != "inside" {
		t.Errorf("wrong entries or order: %q, %q", got[0].Title, got[1].Title)
	}
	if got[1].CategoryName == "" {
		t.Error("category name not joined")
	}
}

func TestDedupeKeepsEarliestLinked(t *testing.T) {
	db := testDB(t)

	keep := insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T10:00:00Z", "standup", "pe_abc")
	insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T10:05:00Z", "standup", "pe_abc")
	insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T10:09:00Z", "standup dup", "pe_abc")

	n, err := db.DedupeEntries("u1")
	if err != nil {
		t.Fatalf("deduping: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	left, err := db.ListEntries("u1", mustParse(t, "2026-03-10T00:00:00Z"), mustParse(t, "2026-03-11T00:00:00Z"))
	if err != nil {
		t.Fatalf("listing entries: %v", err)
	}
	if len(left) != 1 || left[0].ID != keep.ID {
		t.Errorf("survivor = %+v, want id %s", left, keep.ID)
	}
}

func TestDedupeKeepsEarliestExactDuplicate(t *testing.T) {
	db := testDB(t)

	keep := insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T10:00:00Z", "deep work", "")
	insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T11:00:00Z", "  deep work  ", "")
	// Different title: not a duplicate.
	other := insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T11:00:00Z", "review", "")

	n, err := db.DedupeEntries("u1")
	if err != nil {
		t.Fatalf("deduping: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}

	left, err := db.ListEntries("u1", mustParse(t, "2026-03-10T00:00:00Z"), mustParse(t, "2026-03-11T00:00:00Z"))
	if err != nil {
		t.Fatalf("listing entries: %v", err)
	}
	ids := map[string]bool{}
	for _, e := range left {
		ids[e.ID] = true
	}
	if !ids[keep.ID] || !ids[other.ID] || len(left) != 2 {
		t.Errorf("survivors = %v, want {%s, %s}", ids, keep.ID, other.ID)
	}
}

func TestDedupeIsIdempotent(t *testing.T) {
	db := testDB(t)

	insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T10:00:00Z", "a", "pe_x")
	insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T10:05:00Z", "a", "pe_x")

	if _, err := db.DedupeEntries("u1"); err != nil {
		t.Fatalf("first dedupe: %v", err)
	}
	n, err := db.DedupeEntries("u1")
	if err != nil {
		t.Fatalf("second dedupe: %v", err)
	}
	if n != 0 {
		t.Errorf("second pass deleted %d, want 0", n)
	}
}

func TestLastBoundary(t *testing.T) {
	db := testDB(t)

	if _, ok, err := db.LastBoundary("u1"); err != nil || ok {
		t.Fatalf("empty user: ok=%v err=%v, want ok=false", ok, err)
	}

	insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T10:00:00Z", "a", "")
	insertEntryAt(t, db, "2026-03-10T11:00:00Z", "2026-03-10T12:30:00Z", "2026-03-10T12:30:00Z", "b", "")

	got, ok, err := db.LastBoundary("u1")
	if err != nil || !ok {
		t.Fatalf("last boundary: ok=%v err=%v", ok, err)
	}
	if want := mustParse(t, "2026-03-10T12:30:00Z"); !got.Equal(want) {
		t.Errorf("last boundary = %v, want %v", got, want)
	}
}

func TestUpdateEntry(t *testing.T) {
	db := testDB(t)

	e := insertEntryAt(t, db, "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z", "2026-03-10T10:00:00Z", "draft", "")

	title := "final"
	end := mustParse(t, "2026-03-10T10:30:00Z")
	ok, err := db.UpdateEntry("u1", e.ID, EntryUpdate{Title: &title, EndAt: &end})
	if err != nil || !ok {
		t.Fatalf("updating: ok=%v err=%v", ok, err)
	}

	got, err := db.GetEntry("u1", e.ID)
	if err != nil || got == nil {
		t.Fatalf("reading back: %v", err)
	}
	if got.Title != "final" || !got.EndAt.Equal(end) {
		t.Errorf("got title=%q end=%v", got.Title, got.EndAt)
	}

	if ok, err := db.UpdateEntry("u1", "te_missing", EntryUpdate{Title: &title}); err != nil || ok {
		t.Errorf("updating missing entry: ok=%v err=%v, want ok=false", ok, err)
	}
}

func TestScrubFutureEntriesKeepsLinked(t *testing.T) {
	db := testDB(t)
	cut := mustParse(t, "2026-03-10T00:00:00Z")

	insertEntryAt(t, db, "2026-03-09T09:00:00Z", "2026-03-09T10:00:00Z", "2026-03-09T10:00:00Z", "past", "")
	insertEntryAt(t, db, "2026-03-11T09:00:00Z", "2026-03-11T10:00:00Z", "2026-03-09T10:00:00Z", "phantom", "")
	insertEntryAt(t, db, "2026-03-11T11:00:00Z", "2026-03-11T12:00:00Z", "2026-03-09T10:00:00Z", "planned", "pe_keep")

	n, err := db.ScrubFutureEntries("u1", cut)
	if err != nil {
		t.Fatalf("scrubbing: %v", err)
	}
	if n != 1 {
		t.Errorf("scrubbed %d, want 1", n)
	}

	left, err := db.ListEntries("u1", mustParse(t, "2026-03-09T00:00:00Z"), mustParse(t, "2026-03-12T00:00:00Z"))
	if err != nil {
		t.Fatalf("listing entries: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("got %d survivors, want 2", len(left))
	}
	for _, e := range left {
		if e.Title == "phantom" {
			t.Error("phantom future entry survived")
		}
	}
}

func TestEntryTagsRoundTrip(t *testing.T) {
	db := testDB(t)

	e := model.LoggedEntry{
		UserID:     "u1",
		StartAt:    mustParse(t, "2026-03-10T09:00:00Z"),
		EndAt:      mustParse(t, "2026-03-10T10:00:00Z"),
		Title:      "tagged",
		CategoryID: firstCategoryID(t, db),
		Tags:       []string{"focus", "billable"},
		Source:     model.SourcePrompt,
		Device:     "laptop",
	}
	if err := db.InsertEntry(&e); err != nil {
		t.Fatalf("inserting: %v", err)
	}

	got, err := db.GetEntry("u1", e.ID)
	if err != nil || got == nil {
		t.Fatalf("reading back: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "focus" || got.Tags[1] != "billable" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Source != model.SourcePrompt || got.Device != "laptop" {
		t.Errorf("source=%q device=%q", got.Source, got.Device)
	}
	if time.Since(got.CreatedAt) > time.Minute {
		t.Errorf("created_at not defaulted: %v", got.CreatedAt)
	}
}

func TestInsertLinkedEntryGuardsAgainstDoubleLink(t *testing.T) {
	db := testDB(t)

	first := model.LoggedEntry{
		UserID:               "u1",
		StartAt:              mustParse(t, "2026-03-10T09:00:00Z"),
		EndAt:                mustParse(t, "2026-03-10T10:00:00Z"),
		Title:                "standup",
		CategoryID:           firstCategoryID(t, db),
		Source:               model.SourceCalendarImport,
		LinkedPlannedEventID: "pe_abc",
	}
	existing, err := db.InsertLinkedEntry(&first)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if existing != nil {
		t.Fatalf("first insert reported an existing entry: %+v", existing)
	}

	second := first
	second.ID = ""
	second.Title = "standup again"
	existing, err = db.InsertLinkedEntry(&second)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if existing == nil || existing.ID != first.ID {
		t.Fatalf("existing = %+v, want entry %s", existing, first.ID)
	}

	unlinked := first
	unlinked.ID = ""
	unlinked.LinkedPlannedEventID = ""
	if _, err := db.InsertLinkedEntry(&unlinked); err == nil {
		t.Error("expected error for entry without a planned event id")
	}
}
