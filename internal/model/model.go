package model

import "time"

// EntrySource identifies how a logged entry was created.
type EntrySource string

const (
	SourceManual         EntrySource = "manual"
	SourcePrompt         EntrySource = "prompt"
	SourceReview         EntrySource = "review"
	SourceCalendarImport EntrySource = "calendar_import"
	SourceAutoCategorize EntrySource = "auto_categorize"
)

// EventSource identifies which calendar integration a planned event came from.
type EventSource string

const (
	EventSourceGoogle        EventSource = "google"
	EventSourceOutlook       EventSource = "outlook"
	EventSourceAppleICS      EventSource = "apple_ics"
	EventSourceAppleEventKit EventSource = "apple_eventkit"
)

// ImportedSource reports whether events from this source are persisted locally
// (Apple-style feeds) rather than fetched live on every request.
func (s EventSource) Imported() bool {
	return s == EventSourceAppleICS || s == EventSourceAppleEventKit
}

// LoggedEntry is a user-confirmed record of time actually spent.
// StartAt and EndAt are UTC instants with EndAt strictly after StartAt.
type LoggedEntry struct {
	ID                   string
	UserID               string
	StartAt              time.Time
	EndAt                time.Time
	Title                string
	CategoryID           string
	CategoryName         string
	Tags                 []string
	Source               EntrySource
	Device               string
	LinkedPlannedEventID string
	CreatedAt            time.Time
}

// Duration returns the entry length.
func (e LoggedEntry) Duration() time.Duration {
	return e.EndAt.Sub(e.StartAt)
}

// PlannedEvent is a read-only projection of an external calendar item.
// Live sources (google, outlook) are fetched per request; imported sources
// are persisted rows keyed by (user_id, source, external_id).
type PlannedEvent struct {
	ID                 string
	UserID             string
	Source             EventSource
	StartAt            time.Time
	EndAt              time.Time
	Title              string
	IsAllDay           bool
	SourceCalendarName string
	SuggestedCategory  string
}

// Category is a named bucket logged entries reference.
// IsWritable controls whether entries in this category may be written back to
// external calendars; Color is empty when the default palette applies.
type Category struct {
	ID             string
	UserID         string
	Name           string
	IsPromptChoice bool
	IsWritable     bool
	SortOrder      int
	Color          string
	CreatedAt      time.Time
}
