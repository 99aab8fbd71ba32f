package store

import (
	"testing"

	"github.com/okarlsen/daytally/internal/model"
)

func TestGetOrCreateCategoryByName(t *testing.T) {
	db := testDB(t)

	existing, err := db.GetOrCreateCategoryByName("u1", "work (ACTIVE)")
	if err != nil {
		t.Fatalf("resolving seeded category: %v", err)
	}
	if existing.Name != "Work (active)" {
		t.Errorf("resolved %q, want seeded Work (active)", existing.Name)
	}

	created, err := db.GetOrCreateCategoryByName("u1", "Music practice")
	if err != nil {
		t.Fatalf("creating category: %v", err)
	}
	if created.ID == "" || created.SortOrder <= 110 {
		t.Errorf("new category = %+v, want fresh id sorting after seeds", created)
	}

	again, err := db.GetOrCreateCategoryByName("u1", "music practice")
	if err != nil {
		t.Fatalf("re-resolving: %v", err)
	}
	if again.ID != created.ID {
		t.Errorf("resolved to %s, want %s", again.ID, created.ID)
	}
}

func TestPromptCategories(t *testing.T) {
	db := testDB(t)

	prompt, err := db.PromptCategories("u1")
	if err != nil {
		t.Fatalf("listing prompt categories: %v", err)
	}
	if len(prompt) == 0 {
		t.Fatal("no prompt categories seeded")
	}
	for _, c := range prompt {
		if !c.IsPromptChoice {
			t.Errorf("%q returned but is not a prompt choice", c.Name)
		}
	}

	all, err := db.ListCategories("u1")
	if err != nil {
		t.Fatalf("listing all categories: %v", err)
	}
	if len(prompt) >= len(all) {
		t.Errorf("prompt set (%d) should be smaller than full set (%d)", len(prompt), len(all))
	}
}

func TestDeleteCategoryInUse(t *testing.T) {
	db := testDB(t)
	catID := firstCategoryID(t, db)

	e := model.LoggedEntry{
		UserID:     "u1",
		StartAt:    mustParse(t, "2026-03-10T09:00:00Z"),
		EndAt:      mustParse(t, "2026-03-10T10:00:00Z"),
		Title:      "work",
		CategoryID: catID,
		Source:     model.SourceManual,
	}
	if err := db.InsertEntry(&e); err != nil {
		t.Fatalf("inserting entry: %v", err)
	}

	if ok, err := db.DeleteCategory("u1", catID); err == nil || ok {
		t.Errorf("deleting in-use category: ok=%v err=%v, want error", ok, err)
	}

	empty, err := db.GetOrCreateCategoryByName("u1", "Scratch")
	if err != nil {
		t.Fatalf("creating scratch category: %v", err)
	}
	if ok, err := db.DeleteCategory("u1", empty.ID); err != nil || !ok {
		t.Errorf("deleting unused category: ok=%v err=%v", ok, err)
	}
}
