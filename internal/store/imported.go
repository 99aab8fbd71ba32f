package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/okarlsen/daytally/internal/model"
)

// ImportedEvent is a calendar event mirrored from an external source.
type ImportedEvent struct {
	ID                 string
	UserID             string
	Source             model.EventSource
	ExternalID         string
	SourceCalendarName string
	Title              string
	IsAllDay           bool
	StartAt            time.Time
	EndAt              time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SyncResult reports what a ReplaceImported pass did.
type SyncResult struct {
	Deleted  int
	Upserted int
}

// ReplaceImported replaces the user's imported events for one source within
// the UTC window [start, end): rows in the window are deleted and the given
// events inserted, atomically. Row ids derive from (user, source, external_id),
// so replaying the same payload produces the same rows.
func (db *DB) ReplaceImported(userID string, source model.EventSource, start, end time.Time, events []ImportedEvent) (SyncResult, error) {
	var res SyncResult

	tx, err := db.Begin()
	if err != nil {
		return res, fmt.Errorf("beginning sync transaction: %w", err)
	}
	defer tx.Rollback()

	del, err := tx.Exec(
		`DELETE FROM planned_events_imported
		 WHERE user_id = ? AND source = ? AND start_at < ? AND end_at > ?`,
		userID, string(source),
		end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return res, fmt.Errorf("deleting stale imported events: %w", err)
	}
	n, _ := del.RowsAffected()
	res.Deleted = int(n)

	now := utcNow().Format(time.RFC3339)
	for _, ev := range events {
		id := importedID(userID, string(source), ev.ExternalID)
		_, err := tx.Exec(
			`INSERT INTO planned_events_imported
			   (id, user_id, source, external_id, source_calendar_name, title, is_all_day, start_at, end_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, source, external_id) DO UPDATE SET
			   source_calendar_name = excluded.source_calendar_name,
			   title                = excluded.title,
			   is_all_day           = excluded.is_all_day,
			   start_at             = excluded.start_at,
			   end_at               = excluded.end_at,
			   updated_at           = excluded.updated_at`,
			id, userID, string(source), ev.ExternalID,
			ev.SourceCalendarName, ev.Title, boolToInt(ev.IsAllDay),
			ev.StartAt.UTC().Format(time.RFC3339),
			ev.EndAt.UTC().Format(time.RFC3339),
			now, now,
		)
		if err != nil {
			return res, fmt.Errorf("upserting imported event %q: %w", ev.ExternalID, err)
		}
		res.Upserted++
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("committing sync transaction: %w", err)
	}
	return res, nil
}

// UpsertImported inserts or updates a single imported event outside of a
// windowed sync, keyed by (user, source, external_id). Used by ICS file
// import where no authoritative window exists.
func (db *DB) UpsertImported(userID string, ev ImportedEvent) error {
	now := utcNow().Format(time.RFC3339)
	id := importedID(userID, string(ev.Source), ev.ExternalID)
	_, err := db.Exec(
		`INSERT INTO planned_events_imported
		   (id, user_id, source, external_id, source_calendar_name, title, is_all_day, start_at, end_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, source, external_id) DO UPDATE SET
		   source_calendar_name = excluded.source_calendar_name,
		   title                = excluded.title,
		   is_all_day           = excluded.is_all_day,
		   start_at             = excluded.start_at,
		   end_at               = excluded.end_at,
		   updated_at           = excluded.updated_at`,
		id, userID, string(ev.Source), ev.ExternalID,
		ev.SourceCalendarName, ev.Title, boolToInt(ev.IsAllDay),
		ev.StartAt.UTC().Format(time.RFC3339),
		ev.EndAt.UTC().Format(time.RFC3339),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting imported event %q: %w", ev.ExternalID, err)
	}
	return nil
}

// ListImported returns the user's imported events intersecting the half-open
// UTC range [start, end), ordered by start time. sources narrows the result
// when non-empty.
func (db *DB) ListImported(userID string, start, end time.Time, sources ...model.EventSource) ([]ImportedEvent, error) {
	query := `SELECT id, user_id, source, external_id, source_calendar_name, title, is_all_day, start_at, end_at, created_at, updated_at
	          FROM planned_events_imported
	          WHERE user_id = ? AND start_at < ? AND end_at > ?`
	args := []any{userID, end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339)}
	if len(sources) > 0 {
		query += ` AND source IN (?` + repeatPlaceholder(len(sources)-1) + `)`
		for _, s := range sources {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY start_at ASC, source ASC, id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying imported events: %w", err)
	}
	defer rows.Close()

	var events []ImportedEvent
	for rows.Next() {
		ev, err := scanImported(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetImported returns one imported event by row id, or nil when missing.
func (db *DB) GetImported(userID, id string) (*ImportedEvent, error) {
	rows, err := db.Query(
		`SELECT id, user_id, source, external_id, source_calendar_name, title, is_all_day, start_at, end_at, created_at, updated_at
		 FROM planned_events_imported
		 WHERE user_id = ? AND id = ?`,
		userID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying imported event: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	ev, err := scanImported(rows)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ImportStatus reports, per source, how many events are stored and when the
// most recent sync touched them.
func (db *DB) ImportStatus(userID string) (map[model.EventSource]SourceImportStatus, error) {
	rows, err := db.Query(
		`SELECT source, COUNT(*), MAX(updated_at)
		 FROM planned_events_imported
		 WHERE user_id = ?
		 GROUP BY source`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying import status: %w", err)
	}
	defer rows.Close()

	status := make(map[model.EventSource]SourceImportStatus)
	for rows.Next() {
		var source, updated string
		var count int
		if err := rows.Scan(&source, &count, &updated); err != nil {
			return nil, fmt.Errorf("scanning import status: %w", err)
		}
		s := SourceImportStatus{Count: count}
		if t, err := time.Parse(time.RFC3339, updated); err == nil {
			s.LastSyncedAt = t
		}
		status[model.EventSource(source)] = s
	}
	return status, rows.Err()
}

// SourceImportStatus summarizes one source's stored events.
type SourceImportStatus struct {
	Count        int
	LastSyncedAt time.Time
}

func scanImported(rows *sql.Rows) (ImportedEvent, error) {
	var ev ImportedEvent
	var source, startStr, endStr, createdStr, updatedStr string
	var allDay int
	if err := rows.Scan(
		&ev.ID, &ev.UserID, &source, &ev.ExternalID, &ev.SourceCalendarName,
		&ev.Title, &allDay, &startStr, &endStr, &createdStr, &updatedStr,
	); err != nil {
		return ev, fmt.Errorf("scanning imported event: %w", err)
	}
	ev.Source = model.EventSource(source)
	ev.IsAllDay = allDay != 0
	if t, err := time.Parse(time.RFC3339, startStr); err == nil {
		ev.StartAt = t
	}
	if t, err := time.Parse(time.RFC3339, endStr); err == nil {
		ev.EndAt = t
	}
	if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
		ev.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedStr); err == nil {
		ev.UpdatedAt = t
	}
	return ev, nil
}

func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}
