package store

import (
	"fmt"
	"time"
)

// TargetHoursPerDay and friends classify how a weekly target's value reads.
const (
	TargetHoursPerDay  = "hours_per_day"
	TargetHoursPerWeek = "hours_per_week"
	TargetMinHours     = "min_hours"
	TargetMaxHours     = "max_hours"
)

// Target is a standing commitment for one category, e.g. "Exercise at least
// one hour per day". Value is in hours, interpreted per Type.
type Target struct {
	ID        string
	UserID    string
	Category  string
	Type      string
	Value     float64
	CreatedAt time.Time
}

// ValidTargetType reports whether t names a known target interpretation.
func ValidTargetType(t string) bool {
	switch t {
	case TargetHoursPerDay, TargetHoursPerWeek, TargetMinHours, TargetMaxHours:
		return true
	}
	return false
}

// CreateTarget persists a new target. A missing ID or CreatedAt is filled in.
func (db *DB) CreateTarget(t *Target) error {
	if !ValidTargetType(t.Type) {
		return fmt.Errorf("unknown target type %q", t.Type)
	}
	if t.ID == "" {
		t.ID = newID("target")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utcNow()
	}
	_, err := db.Exec(
		`INSERT INTO weekly_targets (id, user_id, category, target_type, target_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Category, t.Type, t.Value, t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting target: %w", err)
	}
	return nil
}

// ListTargets returns the user's targets ordered by category.
func (db *DB) ListTargets(userID string) ([]Target, error) {
	rows, err := db.Query(
		`SELECT id, user_id, category, target_type, target_value, created_at
		 FROM weekly_targets WHERE user_id = ?
		 ORDER BY category ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying targets: %w", err)
	}
	defer rows.Close()

	var out []Target
	for rows.Next() {
		var t Target
		var created string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Category, &t.Type, &t.Value, &created); err != nil {
			return nil, fmt.Errorf("scanning target: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTarget removes one target. Returns false when it does not exist.
func (db *DB) DeleteTarget(userID, id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM weekly_targets WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, fmt.Errorf("deleting target: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
