package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is the current schema generation. v2 added the categories
// color column, v3 the weekly_targets table; earlier databases are migrated
// in place at startup instead of being checked per request.
const schemaVersion = 3

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	timezone   TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	name             TEXT NOT NULL,
	is_prompt_choice INTEGER NOT NULL DEFAULT 0,
	is_writable      INTEGER NOT NULL DEFAULT 0,
	sort_order       INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS time_entries (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	start_at         TEXT NOT NULL,
	end_at           TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	category_id      TEXT NOT NULL,
	tags_json        TEXT NOT NULL DEFAULT '[]',
	source           TEXT NOT NULL,
	device           TEXT NOT NULL DEFAULT '',
	planned_event_id TEXT,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS planned_events_imported (
	id                   TEXT PRIMARY KEY,
	user_id              TEXT NOT NULL,
	source               TEXT NOT NULL,
	external_id          TEXT NOT NULL,
	source_calendar_name TEXT NOT NULL DEFAULT '',
	title                TEXT NOT NULL DEFAULT '',
	is_all_day           INTEGER NOT NULL DEFAULT 0,
	start_at             TEXT NOT NULL,
	end_at               TEXT NOT NULL,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL,
	UNIQUE(user_id, source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_entries_user_range ON time_entries(user_id, start_at, end_at);
CREATE INDEX IF NOT EXISTS idx_entries_planned ON time_entries(user_id, planned_event_id);
CREATE INDEX IF NOT EXISTS idx_imported_user_range ON planned_events_imported(user_id, start_at, end_at);
`

var defaultCategories = []struct {
	name           string
	isPromptChoice bool
	isWritable     bool
	sortOrder      int
}{
	{"Work (active)", true, true, 10},
	{"Work (passive)", true, false, 20},
	{"Learning", true, true, 30},
	{"Exercise", true, true, 40},
	{"Intimacy / quality time", true, false, 50},
	{"Chores", false, false, 60},
	{"Life essentials", true, false, 65},
	{"Social", false, false, 70},
	{"Commute", false, false, 80},
	{"Unplanned wasting", true, false, 90},
	{"Other", false, false, 100},
	{"Sleep", false, true, 110},
}

type DB struct {
	*sql.DB
}

// Open opens (or creates) the SQLite database at path and brings the schema
// up to the current version.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store := &DB{db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (db *DB) migrate() error {
	ver, err := db.currentSchemaVersion()
	if err != nil {
		return err
	}

	if ver == 0 {
		if _, err := db.Exec(schemaV1); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		ver = 1
	}
	if ver == 1 {
		if _, err := db.Exec(`ALTER TABLE categories ADD COLUMN color TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("adding categories.color: %w", err)
		}
		ver = 2
	}
	if ver == 2 {
		if _, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS weekly_targets (
				id           TEXT PRIMARY KEY,
				user_id      TEXT NOT NULL,
				category     TEXT NOT NULL,
				target_type  TEXT NOT NULL,
				target_value REAL NOT NULL,
				created_at   TEXT NOT NULL
			)`); err != nil {
			return fmt.Errorf("creating weekly_targets: %w", err)
		}
		ver = 3
	}

	if _, err := db.Exec(`DELETE FROM schema_meta`); err != nil {
		return fmt.Errorf("clearing schema_meta: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, ver); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

func (db *DB) currentSchemaVersion() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_meta'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("checking schema_meta: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	var ver int
	err = db.QueryRow(`SELECT version FROM schema_meta LIMIT 1`).Scan(&ver)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return ver, nil
}

// EnsureUser inserts the user if missing and seeds the default category set
// on first sight. Safe to call on every startup.
func (db *DB) EnsureUser(userID, email, timezone string) error {
	now := utcNow().Format(time.RFC3339)
	_, err := db.Exec(
		`INSERT OR IGNORE INTO users (id, email, timezone, created_at) VALUES (?, ?, ?, ?)`,
		userID, email, timezone, now,
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(1) FROM categories WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return fmt.Errorf("counting categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, c := range defaultCategories {
		_, err := db.Exec(
			`INSERT INTO categories (id, user_id, name, is_prompt_choice, is_writable, sort_order, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			newID("cat"), userID, c.name, boolToInt(c.isPromptChoice), boolToInt(c.isWritable), c.sortOrder, now,
		)
		if err != nil {
			return fmt.Errorf("seeding category %q: %w", c.name, err)
		}
	}
	return nil
}

// UserTimezone returns the user's configured timezone name, or "" when the
// user is unknown.
func (db *DB) UserTimezone(userID string) (string, error) {
	var tz string
	err := db.QueryRow(`SELECT timezone FROM users WHERE id = ?`, userID).Scan(&tz)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading user timezone: %w", err)
	}
	return tz, nil
}

func (db *DB) SetUserTimezone(userID, timezone string) error {
	_, err := db.Exec(`UPDATE users SET timezone = ? WHERE id = ?`, timezone, userID)
	return err
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
