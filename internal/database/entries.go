package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const entryColumns = `id, date, raw_text, narrative_text, title, title_options, conflict,
	logline, synopsis, keywords, season_id, recap_id, created_at, updated_at`

// CreateEntry inserts an entry and assigns its ID.
func (db *DB) CreateEntry(e *Entry) error {
	args, err := entryArgs(e)
	if err != nil {
		return err
	}

	result, err := db.conn.Exec(
		`INSERT INTO diary_entries
		(date, raw_text, narrative_text, title, title_options, conflict,
		logline, synopsis, keywords, season_id, recap_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// UpdateEntry writes every column of an existing entry.
func (db *DB) UpdateEntry(e *Entry) error {
	if e.ID == 0 {
		return fmt.Errorf("cannot update entry without id")
	}

	args, err := entryArgs(e)
	if err != nil {
		return err
	}
	args = append(args, e.ID)

	result, err := db.conn.Exec(
		`UPDATE diary_entries SET
		date = ?, raw_text = ?, narrative_text = ?, title = ?, title_options = ?, conflict = ?,
		logline = ?, synopsis = ?, keywords = ?, season_id = ?, recap_id = ?,
		updated_at = datetime('now')
		WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating entry %d: %w", e.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry %d: %w", e.ID, ErrNotFound)
	}
	return nil
}

// GetEntry returns the entry with the given ID, or nil if it does not exist.
func (db *DB) GetEntry(id int64) (*Entry, error) {
	row := db.conn.QueryRow("SELECT "+entryColumns+" FROM diary_entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntries returns entries newest first. A limit <= 0 returns all.
func (db *DB) ListEntries(limit int) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM diary_entries ORDER BY date DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListEntriesBetween returns entries whose date is within [start, end], newest first.
func (db *DB) ListEntriesBetween(start, end string) ([]Entry, error) {
	rows, err := db.conn.Query(
		"SELECT "+entryColumns+` FROM diary_entries
		WHERE date >= ? AND date <= ? ORDER BY date DESC, id DESC`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListEntriesLastNDays returns entries from the last n days including today.
func (db *DB) ListEntriesLastNDays(n int) ([]Entry, error) {
	if n < 1 {
		n = 1
	}
	end := time.Now()
	start := end.AddDate(0, 0, -(n - 1))
	return db.ListEntriesBetween(start.Format(DateLayout), end.Format(DateLayout))
}

// ListUnprocessed returns entries missing at least one derived group, oldest first.
func (db *DB) ListUnprocessed() ([]Entry, error) {
	rows, err := db.conn.Query(
		"SELECT " + entryColumns + ` FROM diary_entries
		WHERE conflict IS NULL OR narrative_text IS NULL OR narrative_text = ''
		OR title IS NULL OR title = '' OR logline IS NULL
		ORDER BY date ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// FindEntryByText returns the first entry on date with exactly rawText, or nil.
func (db *DB) FindEntryByText(date, rawText string) (*Entry, error) {
	row := db.conn.QueryRow(
		"SELECT "+entryColumns+" FROM diary_entries WHERE date = ? AND raw_text = ? LIMIT 1",
		date, rawText,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEntry removes an entry. It reports whether a row was deleted.
func (db *DB) DeleteEntry(id int64) (bool, error) {
	result, err := db.conn.Exec("DELETE FROM diary_entries WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	counts := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM diary_entries", &s.TotalEntries},
		{`SELECT COUNT(*) FROM diary_entries WHERE conflict IS NOT NULL
			AND narrative_text IS NOT NULL AND title IS NOT NULL AND logline IS NOT NULL`, &s.ProcessedEntries},
		{"SELECT COUNT(*) FROM seasons", &s.Seasons},
		{"SELECT COUNT(*) FROM recaps", &s.Recaps},
	}
	for _, q := range counts {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var first, last sql.NullString
	if err := db.conn.QueryRow("SELECT MIN(date), MAX(date) FROM diary_entries").Scan(&first, &last); err != nil {
		return nil, err
	}
	s.FirstDate = first.String
	s.LastDate = last.String
	return s, nil
}

func entryArgs(e *Entry) ([]any, error) {
	titleOptions, err := marshalNullable(e.TitleOptions, len(e.TitleOptions) > 0)
	if err != nil {
		return nil, fmt.Errorf("encoding title options: %w", err)
	}
	conflict, err := marshalNullable(e.Conflict, e.Conflict != nil)
	if err != nil {
		return nil, fmt.Errorf("encoding conflict: %w", err)
	}

	var logline, synopsis, keywords *string
	if e.Metadata != nil {
		logline = &e.Metadata.Logline
		synopsis = &e.Metadata.Synopsis
		kw := e.Metadata.Keywords
		if kw == nil {
			kw = []string{}
		}
		keywords, err = marshalNullable(kw, true)
		if err != nil {
			return nil, fmt.Errorf("encoding keywords: %w", err)
		}
	}

	return []any{
		e.Date, e.RawText, e.NarrativeText, e.Title, titleOptions, conflict,
		logline, synopsis, keywords, e.SeasonID, e.RecapID,
	}, nil
}

func marshalNullable(v any, present bool) (*string, error) {
	if !present {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var titleOptions, conflict, logline, synopsis, keywords *string
	if err := row.Scan(&e.ID, &e.Date, &e.RawText, &e.NarrativeText, &e.Title,
		&titleOptions, &conflict, &logline, &synopsis, &keywords,
		&e.SeasonID, &e.RecapID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	if titleOptions != nil {
		if err := json.Unmarshal([]byte(*titleOptions), &e.TitleOptions); err != nil {
			e.TitleOptions = nil
		}
	}
	if conflict != nil {
		var c ConflictProfile
		if err := json.Unmarshal([]byte(*conflict), &c); err == nil {
			e.Conflict = &c
		}
	}
	if logline != nil {
		m := &EpisodeMetadata{Logline: *logline, Keywords: []string{}}
		if synopsis != nil {
			m.Synopsis = *synopsis
		}
		if keywords != nil {
			if err := json.Unmarshal([]byte(*keywords), &m.Keywords); err != nil {
				m.Keywords = []string{}
			}
		}
		e.Metadata = m
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
