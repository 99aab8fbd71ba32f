// Package source fetches planned events from external calendars and turns
// them into a normalized, merged view for reconciliation.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/okarlsen/daytally/internal/model"
)

var (
	// ErrNotConfigured means the provider has no credentials and cannot be
	// used until the user sets it up.
	ErrNotConfigured = errors.New("source not configured")

	// ErrAuthExpired means the provider's stored token is no longer valid
	// and interactive re-authentication is required.
	ErrAuthExpired = errors.New("source authentication expired")

	// ErrProvider marks transient upstream failures (HTTP errors, bad
	// payloads) that do not need user action beyond retrying later.
	ErrProvider = errors.New("provider error")
)

// RawEvent is a calendar item as a provider hands it over, before any
// validation. Start and End are RFC 3339 strings (or date-only for all-day
// items) because providers disagree about formats; normalization parses them.
type RawEvent struct {
	ExternalID   string
	Title        string
	Start        string
	End          string
	AllDay       bool
	CalendarName string
}

// Source is one external calendar provider.
type Source interface {
	// Name identifies the provider in results and logs.
	Name() model.EventSource

	// Events returns the provider's items overlapping the UTC window
	// [start, end). Implementations honor ctx cancellation.
	Events(ctx context.Context, start, end time.Time) ([]RawEvent, error)
}

// Status describes how one provider's fetch went. A failed provider
// contributes zero events, never an aborted request.
type Status struct {
	Source    model.EventSource
	OK        bool
	Error     string
	Count     int
	FetchedIn time.Duration
}
