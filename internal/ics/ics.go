// Package ics imports planned events from iCalendar feeds (a URL or a local
// .ics file exported from Apple Calendar) into the local database.
package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"

	"github.com/okarlsen/daytally/internal/model"
	"github.com/okarlsen/daytally/internal/store"
)

// Importer parses a feed and replaces the user's stored apple_ics events
// inside the imported window.
type Importer struct {
	db *store.DB
}

func NewImporter(db *store.DB) *Importer {
	return &Importer{db: db}
}

// Import reads the feed at location (URL or file path) and syncs every event
// overlapping the UTC window [start, end). Recurrence expansions without a
// stable UID get one derived from their start instant, so a weekly standup
// yields distinct events per occurrence.
func (im *Importer) Import(ctx context.Context, location, userID, calendarName string, start, end time.Time, loc *time.Location) (store.SyncResult, error) {
	r, err := open(ctx, location)
	if err != nil {
		return store.SyncResult{}, err
	}
	defer r.Close()

	events, err := parse(r, calendarName, start, end, loc)
	if err != nil {
		return store.SyncResult{}, err
	}

	return im.db.ReplaceImported(userID, model.EventSourceAppleICS, start, end, events)
}

func open(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("opening calendar file: %w", err)
	}
	return f, nil
}

func parse(r io.Reader, calendarName string, windowStart, windowEnd time.Time, loc *time.Location) ([]store.ImportedEvent, error) {
	dec := ical.NewDecoder(r)
	var events []store.ImportedEvent

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			start, err := event.DateTimeStart(loc)
			if err != nil {
				continue // skip malformed events
			}
			end, err := event.DateTimeEnd(loc)
			if err != nil {
				continue
			}
			if !end.After(start) {
				continue
			}
			if !start.Before(windowEnd) || !end.After(windowStart) {
				continue
			}

			uid, _ := event.Props.Text(ical.PropUID)
			summary, _ := event.Props.Text(ical.PropSummary)
			if uid == "" && summary == "" {
				continue
			}
			if uid == "" {
				uid = summary
			}

			allDay := isAllDay(event)
			if allDay {
				d := start.In(loc)
				start = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
				e := end.In(loc)
				end = time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)
				if !end.After(start) {
					end = start.AddDate(0, 0, 1)
				}
			}

			events = append(events, store.ImportedEvent{
				Source: model.EventSourceAppleICS,
				// Suffix the UID with the start instant so each expanded
				// occurrence of a recurring event keeps its own identity.
				ExternalID:         uid + "_" + start.UTC().Format(time.RFC3339),
				SourceCalendarName: calendarName,
				Title:              strings.TrimSpace(summary),
				IsAllDay:           allDay,
				StartAt:            start.UTC(),
				EndAt:              end.UTC(),
			})
		}
	}

	return events, nil
}

func isAllDay(event ical.Event) bool {
	prop := event.Props.Get(ical.PropDateTimeStart)
	if prop == nil {
		return false
	}
	return prop.ValueType() == ical.ValueDate
}
