// Package classify suggests a category for a block of time from its title.
// A keyword pass answers instantly and offline; an OpenAI-backed provider can
// take over for titles the keywords miss.
package classify

import (
	"context"
	"strings"
)

// CanonicalCategories is the fixed vocabulary suggestions are drawn from.
var CanonicalCategories = []string{
	"Work (active)", "Work (passive)", "Learning", "Exercise", "Life essentials",
	"Sleep", "Social", "Chores", "Entertainment", "Commute",
	"Intimate / Quality Time", "Unplanned / Wasted", "Other",
}

// Provider maps a title to a canonical category name.
type Provider interface {
	Categorize(ctx context.Context, title string) (string, error)
}

var keywordRules = []struct {
	category string
	keywords []string
}{
	// Order matters: an explicit "wasted" marker wins over everything, and
	// personal keywords beat work ones so "call mom" is not a work call.
	{"Unplanned / Wasted", []string{
		"wasted", "waste", "procrastinat", "unplanned", "scrolling", "doomscroll",
		"distract", "youtube", "tiktok", "reddit", "instagram", "twitter",
		"browse", "mindless", "drift", "lost time", "rabbit hole",
	}},
	{"Intimate / Quality Time", []string{
		"partner", "date", "boyfriend", "girlfriend", "husband", "wife",
		"dinner with", "movie with", "mom", "mum", "dad", "family", "parent",
		"quality time",
	}},
	{"Work (active)", []string{
		"work", "meeting", "email", "project", "deadline", "client",
		"presentation", "report", "standup", "1:1", "review",
		"conference call", "team call",
	}},
	{"Learning", []string{
		"study", "learn", "course", "class", "reading", "book", "tutorial", "lecture",
	}},
	{"Exercise", []string{
		"gym", "workout", "run", "running", "yoga", "swim", "bike", "hiking",
		"walk", "exercise", "lift",
	}},
	{"Entertainment", []string{
		"shopping", "movie", "netflix", "game", "gaming", "tv", "show", "concert", "party",
	}},
	{"Life essentials", []string{
		"lunch", "dinner", "breakfast", "meal", "shower", "bath", "cleaning",
		"laundry", "dishes", "cook", "groceries", "hygiene", "skincare",
	}},
}

// Suggest classifies by keyword lookup against title and, as a tiebreaker,
// the name of the category the entry already carries. Returns "Other" when
// nothing matches.
func Suggest(title, categoryName string) string {
	titleLower := strings.ToLower(title)
	catLower := strings.ToLower(categoryName)

	for _, rule := range keywordRules[:2] {
		for _, kw := range rule.keywords {
			if strings.Contains(titleLower, kw) {
				return rule.category
			}
		}
	}

	switch {
	case strings.Contains(catLower, "sleep"):
		return "Sleep"
	case strings.Contains(catLower, "work"), strings.Contains(catLower, "active"), strings.Contains(catLower, "passive"):
		return "Work (active)"
	case strings.Contains(catLower, "learn"), strings.Contains(catLower, "study"):
		return "Learning"
	case strings.Contains(catLower, "exercise"), strings.Contains(catLower, "workout"):
		return "Exercise"
	case strings.Contains(catLower, "intim"), strings.Contains(catLower, "quality"):
		return "Intimate / Quality Time"
	case strings.Contains(catLower, "commute"):
		return "Commute"
	case strings.Contains(catLower, "social"):
		return "Social"
	case strings.Contains(catLower, "chore"):
		return "Chores"
	case strings.Contains(catLower, "wasting"), strings.Contains(catLower, "unplanned"):
		return "Unplanned / Wasted"
	}

	for _, rule := range keywordRules[2:] {
		for _, kw := range rule.keywords {
			if strings.Contains(titleLower, kw) {
				return rule.category
			}
		}
	}

	return "Other"
}

// Rules is the offline keyword provider.
type Rules struct{}

func (Rules) Categorize(_ context.Context, title string) (string, error) {
	return Suggest(title, ""), nil
}
