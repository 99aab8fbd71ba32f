package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/okarlsen/daytally/internal/model"
)

// Providers disagree about timestamp formats: Graph omits the offset on
// UTC-preferring requests, ICS all-day values are bare dates.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ItemError records one raw event that could not be normalized. The rest of
// the batch is unaffected.
type ItemError struct {
	ExternalID string
	Title      string
	Reason     string
}

func (e ItemError) Error() string {
	return fmt.Sprintf("event %q (%s): %s", e.Title, e.ExternalID, e.Reason)
}

// Normalize turns raw provider events into planned events for the UTC window
// [start, end). Timed events are clipped to the window; all-day events are
// anchored at local midnight in loc and span whole local days. Events that
// fail validation are reported as item errors instead of failing the batch.
func Normalize(userID string, src model.EventSource, raw []RawEvent, start, end time.Time, loc *time.Location) ([]model.PlannedEvent, []ItemError) {
	var events []model.PlannedEvent
	var bad []ItemError

	for _, r := range raw {
		ev, err := normalizeOne(userID, src, r, loc)
		if err != "" {
			bad = append(bad, ItemError{ExternalID: r.ExternalID, Title: r.Title, Reason: err})
			continue
		}

		// Clip to the requested window; non-overlapping events vanish.
		if !ev.StartAt.Before(end) || !ev.EndAt.After(start) {
			continue
		}
		if ev.StartAt.Before(start) {
			ev.StartAt = start
		}
		if ev.EndAt.After(end) {
			ev.EndAt = end
		}

		events = append(events, ev)
	}

	return events, bad
}

func normalizeOne(userID string, src model.EventSource, r RawEvent, loc *time.Location) (model.PlannedEvent, string) {
	var ev model.PlannedEvent

	if strings.TrimSpace(r.ExternalID) == "" {
		return ev, "missing external id"
	}

	startAt, ok := parseEventTime(r.Start, r.AllDay, loc)
	if !ok {
		return ev, fmt.Sprintf("unparsable start %q", r.Start)
	}
	endAt, ok := parseEventTime(r.End, r.AllDay, loc)
	if !ok {
		return ev, fmt.Sprintf("unparsable end %q", r.End)
	}

	if r.AllDay && endAt.Equal(startAt) {
		// Some feeds emit all-day events with identical date stamps; treat
		// them as one whole local day.
		endAt = startAt.In(loc).AddDate(0, 0, 1).UTC()
	}
	if !endAt.After(startAt) {
		return ev, fmt.Sprintf("end %s not after start %s", endAt.Format(time.RFC3339), startAt.Format(time.RFC3339))
	}

	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = "(untitled)"
	}

	return model.PlannedEvent{
		ID:                 model.PlannedEventID(userID, src, r.ExternalID),
		UserID:             userID,
		Source:             src,
		StartAt:            startAt,
		EndAt:              endAt,
		Title:              title,
		IsAllDay:           r.AllDay,
		SourceCalendarName: r.CalendarName,
	}, ""
}

// parseEventTime parses one provider timestamp. Offset-free layouts are read
// in UTC for timed events; all-day stamps are anchored at local midnight so a
// "2026-03-10" birthday covers the user's March 10th, not UTC's.
func parseEventTime(s string, allDay bool, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	anchor := time.UTC
	if allDay {
		anchor = loc
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, anchor); err == nil {
			if allDay {
				d := t.In(loc)
				t = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
			}
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
