package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/okarlsen/daytally/internal/model"
)

// InsertEntry persists a new logged entry. A missing ID or CreatedAt is
// filled in; the caller's struct is updated with the stored values.
func (db *DB) InsertEntry(e *model.LoggedEntry) error {
	if e.ID == "" {
		e.ID = NewEntryID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utcNow()
	}

	tags, err := json.Marshal(tagsOrEmpty(e.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	var linked any
	if strings.TrimSpace(e.LinkedPlannedEventID) != "" {
		linked = strings.TrimSpace(e.LinkedPlannedEventID)
	}

	_, err = db.Exec(
		`INSERT INTO time_entries
		   (id, user_id, start_at, end_at, title, category_id, tags_json, source, device, planned_event_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID,
		e.StartAt.UTC().Format(time.RFC3339),
		e.EndAt.UTC().Format(time.RFC3339),
		strings.TrimSpace(e.Title), e.CategoryID, string(tags),
		string(e.Source), e.Device, linked,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// InsertLinkedEntry inserts an entry that links a planned event, unless some
// entry already links the same event. The check and the insert run in one
// transaction. Returns the existing entry when one was found, nil when e was
// inserted.
func (db *DB) InsertLinkedEntry(e *model.LoggedEntry) (*model.LoggedEntry, error) {
	linked := strings.TrimSpace(e.LinkedPlannedEventID)
	if linked == "" {
		return nil, fmt.Errorf("inserting linked entry: no planned event id")
	}
	if e.ID == "" {
		e.ID = NewEntryID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utcNow()
	}

	tags, err := json.Marshal(tagsOrEmpty(e.Tags))
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRow(
		`SELECT id FROM time_entries
		 WHERE user_id = ? AND planned_event_id = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		e.UserID, linked,
	).Scan(&existingID)
	if err == nil {
		if cerr := tx.Commit(); cerr != nil {
			return nil, fmt.Errorf("committing: %w", cerr)
		}
		return db.GetEntry(e.UserID, existingID)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("checking linked entry: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO time_entries
		   (id, user_id, start_at, end_at, title, category_id, tags_json, source, device, planned_event_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID,
		e.StartAt.UTC().Format(time.RFC3339),
		e.EndAt.UTC().Format(time.RFC3339),
		strings.TrimSpace(e.Title), e.CategoryID, string(tags),
		string(e.Source), e.Device, linked,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}
	return nil, nil
}

// ListEntries returns the user's logged entries intersecting the half-open
// UTC range [start, end), ordered by start time.
func (db *DB) ListEntries(userID string, start, end time.Time) ([]model.LoggedEntry, error) {
	return db.queryEntries(
		`SELECT te.id, te.user_id, te.start_at, te.end_at, te.title, te.category_id,
		        COALESCE(c.name, ''), te.tags_json, te.source, te.device,
		        COALESCE(te.planned_event_id, ''), te.created_at
		 FROM time_entries te
		 LEFT JOIN categories c ON c.id = te.category_id
		 WHERE te.user_id = ? AND te.start_at < ? AND te.end_at > ?
		 ORDER BY te.start_at ASC`,
		userID, end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339),
	)
}

// GetEntry returns one entry by id, or nil when it does not exist.
func (db *DB) GetEntry(userID, id string) (*model.LoggedEntry, error) {
	entries, err := db.queryEntries(
		`SELECT te.id, te.user_id, te.start_at, te.end_at, te.title, te.category_id,
		        COALESCE(c.name, ''), te.tags_json, te.source, te.device,
		        COALESCE(te.planned_event_id, ''), te.created_at
		 FROM time_entries te
		 LEFT JOIN categories c ON c.id = te.category_id
		 WHERE te.user_id = ? AND te.id = ?`,
		userID, id,
	)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// EntryByLinkedEvent returns the entry linked to the given planned event id,
// or nil when no entry links it. At most one such entry exists per user.
func (db *DB) EntryByLinkedEvent(userID, plannedEventID string) (*model.LoggedEntry, error) {
	entries, err := db.queryEntries(
		`SELECT te.id, te.user_id, te.start_at, te.end_at, te.title, te.category_id,
		        COALESCE(c.name, ''), te.tags_json, te.source, te.device,
		        COALESCE(te.planned_event_id, ''), te.created_at
		 FROM time_entries te
		 LEFT JOIN categories c ON c.id = te.category_id
		 WHERE te.user_id = ? AND te.planned_event_id = ?
		 ORDER BY te.created_at ASC, te.id ASC
		 LIMIT 1`,
		userID, plannedEventID,
	)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// LastBoundary returns the latest end instant across the user's entries.
// ok is false when the user has no entries.
func (db *DB) LastBoundary(userID string) (t time.Time, ok bool, err error) {
	var endStr string
	err = db.QueryRow(
		`SELECT end_at FROM time_entries WHERE user_id = ? ORDER BY end_at DESC LIMIT 1`,
		userID,
	).Scan(&endStr)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("querying last boundary: %w", err)
	}
	t, perr := time.Parse(time.RFC3339, endStr)
	if perr != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// EntryUpdate carries the mutable fields of an entry; nil means unchanged.
type EntryUpdate struct {
	Title      *string
	CategoryID *string
	StartAt    *time.Time
	EndAt      *time.Time
	Tags       *[]string
}

// UpdateEntry applies the non-nil fields of u to the entry. Returns false
// when the entry does not exist.
func (db *DB) UpdateEntry(userID, id string, u EntryUpdate) (bool, error) {
	var sets []string
	var args []any
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*u.Title))
	}
	if u.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *u.CategoryID)
	}
	if u.StartAt != nil {
		sets = append(sets, "start_at = ?")
		args = append(args, u.StartAt.UTC().Format(time.RFC3339))
	}
	if u.EndAt != nil {
		sets = append(sets, "end_at = ?")
		args = append(args, u.EndAt.UTC().Format(time.RFC3339))
	}
	if u.Tags != nil {
		tags, err := json.Marshal(tagsOrEmpty(*u.Tags))
		if err != nil {
			return false, fmt.Errorf("encoding tags: %w", err)
		}
		sets = append(sets, "tags_json = ?")
		args = append(args, string(tags))
	}
	if len(sets) == 0 {
		e, err := db.GetEntry(userID, id)
		return e != nil, err
	}

	args = append(args, userID, id)
	res, err := db.Exec(
		`UPDATE time_entries SET `+strings.Join(sets, ", ")+` WHERE user_id = ? AND id = ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("updating entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteEntry removes the entry. Returns false when it does not exist.
func (db *DB) DeleteEntry(userID, id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM time_entries WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, fmt.Errorf("deleting entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DedupeEntries is an idempotent cleanup pass over the user's entries.
// Entries linked to a planned event keep the earliest-created row per
// (user, planned_event_id); unlinked entries keep the earliest-created row
// per exact (user, start, end, trimmed title). The chosen representative is
// never deleted; ties on created_at break by id so reruns are deterministic.
func (db *DB) DedupeEntries(userID string) (int, error) {
	deleted := 0

	rows, err := db.Query(
		`SELECT id, planned_event_id FROM time_entries
		 WHERE user_id = ? AND planned_event_id IS NOT NULL AND planned_event_id != ''
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("querying linked entries: %w", err)
	}
	var dupes []string
	seen := make(map[string]bool)
	for rows.Next() {
		var id, linked string
		if err := rows.Scan(&id, &linked); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning linked entry: %w", err)
		}
		if seen[linked] {
			dupes = append(dupes, id)
			continue
		}
		seen[linked] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	rows, err = db.Query(
		`SELECT id, start_at, end_at, title FROM time_entries
		 WHERE user_id = ? AND (planned_event_id IS NULL OR planned_event_id = '')
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("querying unlinked entries: %w", err)
	}
	seenExact := make(map[string]bool)
	for rows.Next() {
		var id, start, end, title string
		if err := rows.Scan(&id, &start, &end, &title); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning unlinked entry: %w", err)
		}
		key := start + "\x00" + end + "\x00" + strings.TrimSpace(title)
		if seenExact[key] {
			dupes = append(dupes, id)
			continue
		}
		seenExact[key] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range dupes {
		if _, err := db.Exec(`DELETE FROM time_entries WHERE id = ?`, id); err != nil {
			return deleted, fmt.Errorf("deleting duplicate entry: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

// ScrubFutureEntries deletes unlinked entries starting at or after the given
// UTC instant (typically the start of today). Entries linked to a planned
// event are kept.
func (db *DB) ScrubFutureEntries(userID string, from time.Time) (int, error) {
	res, err := db.Exec(
		`DELETE FROM time_entries
		 WHERE user_id = ? AND start_at >= ?
		   AND (planned_event_id IS NULL OR planned_event_id = '')`,
		userID, from.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("scrubbing future entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (db *DB) queryEntries(query string, args ...any) ([]model.LoggedEntry, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LoggedEntry
	for rows.Next() {
		var e model.LoggedEntry
		var startStr, endStr, createdStr, tagsJSON, source string

		if err := rows.Scan(
			&e.ID, &e.UserID, &startStr, &endStr, &e.Title, &e.CategoryID,
			&e.CategoryName, &tagsJSON, &source, &e.Device,
			&e.LinkedPlannedEventID, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Source = model.EntrySource(source)

		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			e.StartAt = t
		}
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			e.EndAt = t
		}
		if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			e.CreatedAt = t
		}
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
			e.Tags = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
