package classify_test

import (
	"testing"

	"github.com/okarlsen/daytally/internal/classify"
)

func TestSuggest(t *testing.T) {
	tests := []struct {
		title    string
		category string
		want     string
	}{
		{"team standup", "", "Work (active)"},
		{"doomscrolling twitter", "", "Unplanned / Wasted"},
		// Wasted markers beat work keywords even when both match.
		{"procrastinating instead of work", "", "Unplanned / Wasted"},
		// Personal keywords beat work ones.
		{"call mom", "", "Intimate / Quality Time"},
		{"gym session", "", "Exercise"},
		{"reading a book", "", "Learning"},
		{"cooking dinner", "", "Life essentials"},
		{"netflix", "", "Entertainment"},
		{"", "Sleep", "Sleep"},
		{"something unrecognizable", "", "Other"},
		// Existing category name steers unmatched titles.
		{"morning block", "Work (passive)", "Work (active)"},
	}

	for _, tt := range tests {
		if got := classify.Suggest(tt.title, tt.category); got != tt.want {
			t.Errorf("Suggest(%q, %q) = %q, want %q", tt.title, tt.category, got, tt.want)
		}
	}
}

func TestCanonicalCategoriesCoverRuleTargets(t *testing.T) {
	canon := map[string]bool{}
	for _, c := range classify.CanonicalCategories {
		canon[c] = true
	}
	for _, title := range []string{"standup", "gym", "netflix", "doomscroll", "lunch", "book", "call mom"} {
		if got := classify.Suggest(title, ""); !canon[got] {
			t.Errorf("Suggest(%q) = %q, not a canonical category", title, got)
		}
	}
}
