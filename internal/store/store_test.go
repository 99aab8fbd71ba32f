package store

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.EnsureUser("u1", "", "UTC"); err != nil {
		t.Fatalf("ensuring user: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	ver, err := db.currentSchemaVersion()
	if err != nil {
		t.Fatalf("reading schema version: %v", err)
	}
	if ver != schemaVersion {
		t.Fatalf("schema version = %d, want %d", ver, schemaVersion)
	}

	if err := db.migrate(); err != nil {
		t.Fatalf("re-running migrations: %v", err)
	}
	ver, err = db.currentSchemaVersion()
	if err != nil {
		t.Fatalf("reading schema version: %v", err)
	}
	if ver != schemaVersion {
		t.Fatalf("schema version after rerun = %d, want %d", ver, schemaVersion)
	}
}

func TestColorColumnMigration(t *testing.T) {
	db := testDB(t)

	// A fresh database lands on v2, so the color column must be writable.
	cats, err := db.ListCategories("u1")
	if err != nil {
		t.Fatalf("listing categories: %v", err)
	}
	if len(cats) == 0 {
		t.Fatal("expected seeded categories")
	}

	color := "#4a90d9"
	ok, err := db.UpdateCategory("u1", cats[0].ID, CategoryUpdate{Color: &color})
	if err != nil || !ok {
		t.Fatalf("setting color: ok=%v err=%v", ok, err)
	}

	got, err := db.GetCategory("u1", cats[0].ID)
	if err != nil {
		t.Fatalf("reading category: %v", err)
	}
	if got.Color != color {
		t.Errorf("color = %q, want %q", got.Color, color)
	}
}

func TestEnsureUserSeedsOnce(t *testing.T) {
	db := testDB(t)

	first, err := db.ListCategories("u1")
	if err != nil {
		t.Fatalf("listing categories: %v", err)
	}

	if err := db.EnsureUser("u1", "", "UTC"); err != nil {
		t.Fatalf("re-ensuring user: %v", err)
	}
	second, err := db.ListCategories("u1")
	if err != nil {
		t.Fatalf("listing categories again: %v", err)
	}
	if len(first) != len(second) {
		t.Errorf("category count changed on second EnsureUser: %d -> %d", len(first), len(second))
	}
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return ts
}
