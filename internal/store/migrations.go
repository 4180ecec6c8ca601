package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "content_items: the rankable content pool",
		SQL: `
CREATE TABLE content_items (
    id               TEXT PRIMARY KEY,
    author_id        TEXT NOT NULL,
    visibility       TEXT NOT NULL DEFAULT 'public' CHECK (visibility IN ('public', 'private', 'friends')),
    sensitive        INTEGER NOT NULL DEFAULT 0,
    published_at     INTEGER NOT NULL,
    engagement_score REAL NOT NULL DEFAULT 0,
    interest_vector  TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX idx_content_author    ON content_items(author_id);
CREATE INDEX idx_content_published ON content_items(published_at DESC);
`,
	},
	{
		Version:     2,
		Description: "social: friend pairs, viewer preferences, presence colors",
		SQL: `
CREATE TABLE friends (
    user_a     TEXT NOT NULL,
    user_b     TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (user_a, user_b)
);

CREATE TABLE viewer_prefs (
    user_id         TEXT PRIMARY KEY,
    allow_sensitive INTEGER NOT NULL DEFAULT 0,
    updated_at      INTEGER NOT NULL
);

CREATE TABLE presence (
    user_id    TEXT PRIMARY KEY,
    color      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "interest profiles: per-user decaying topic entries",
		SQL: `
CREATE TABLE interest_profiles (
    user_id          TEXT PRIMARY KEY,
    half_life_days   REAL NOT NULL DEFAULT 30,
    last_decay_check INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE interest_entries (
    user_id      TEXT NOT NULL,
    topic        TEXT NOT NULL,
    value        REAL NOT NULL,
    last_updated INTEGER NOT NULL,
    locked       INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, topic),
    FOREIGN KEY (user_id) REFERENCES interest_profiles(user_id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     4,
		Description: "resonance_entries: dual-timescale color state",
		SQL: `
CREATE TABLE resonance_entries (
    user_id       TEXT PRIMARY KEY,
    recent        TEXT NOT NULL DEFAULT '{}',
    baseline      TEXT NOT NULL DEFAULT '{}',
    recent_ts     INTEGER NOT NULL DEFAULT 0,
    baseline_ts   INTEGER NOT NULL DEFAULT 0,
    current_color TEXT NOT NULL,
    mode          TEXT NOT NULL DEFAULT 'dynamic' CHECK (mode IN ('dynamic', 'locked')),
    locked_color  TEXT,
    dominant      TEXT
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
