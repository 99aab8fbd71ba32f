package source

import (
	"context"
	"time"

	"github.com/okarlsen/daytally/internal/model"
	"github.com/okarlsen/daytally/internal/store"
)

// Stored serves previously synced events for one imported source (ICS files,
// EventKit pushes) out of the local database, so persisted and live
// providers merge through the same path.
type Stored struct {
	db     *store.DB
	userID string
	source model.EventSource
}

func NewStored(db *store.DB, userID string, src model.EventSource) *Stored {
	return &Stored{db: db, userID: userID, source: src}
}

func (s *Stored) Name() model.EventSource { return s.source }

func (s *Stored) Events(ctx context.Context, start, end time.Time) ([]RawEvent, error) {
	rows, err := s.db.ListImported(s.userID, start, end, s.source)
	if err != nil {
		return nil, err
	}

	events := make([]RawEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, RawEvent{
			ExternalID:   r.ExternalID,
			Title:        r.Title,
			Start:        r.StartAt.UTC().Format(time.RFC3339),
			End:          r.EndAt.UTC().Format(time.RFC3339),
			AllDay:       r.IsAllDay,
			CalendarName: r.SourceCalendarName,
		})
	}
	return events, nil
}
