package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "diary entries",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS diary_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,
    raw_text TEXT NOT NULL,
    narrative_text TEXT,
    title TEXT
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "episode fields, seasons and recaps",
		Up: func(tx *sql.Tx) error {
			columns := []struct{ name, ddl string }{
				{"title_options", "TEXT"},
				{"conflict", "TEXT"},
				{"logline", "TEXT"},
				{"synopsis", "TEXT"},
				{"keywords", "TEXT"},
				{"season_id", "INTEGER REFERENCES seasons(id) ON DELETE SET NULL"},
				{"recap_id", "INTEGER REFERENCES recaps(id) ON DELETE SET NULL"},
				{"created_at", "TEXT"},
				{"updated_at", "TEXT"},
			}
			for _, c := range columns {
				exists, err := hasColumn(tx, "diary_entries", c.name)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if _, err := tx.Exec("ALTER TABLE diary_entries ADD COLUMN " + c.name + " " + c.ddl); err != nil {
					return err
				}
			}

			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS seasons (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL DEFAULT '',
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    episode_count INTEGER DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    mode TEXT NOT NULL DEFAULT 'monthly',
    dominant_themes TEXT,
    arc_analysis TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS recaps (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,
    content TEXT NOT NULL,
    entry_ids TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

UPDATE diary_entries SET created_at = datetime('now') WHERE created_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_entries_date ON diary_entries(date);
CREATE INDEX IF NOT EXISTS idx_entries_season ON diary_entries(season_id);
CREATE INDEX IF NOT EXISTS idx_seasons_start ON seasons(start_date);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
