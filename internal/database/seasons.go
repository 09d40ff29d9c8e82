package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

const seasonColumns = `id, title, start_date, end_date, episode_count, description, mode,
	dominant_themes, arc_analysis, created_at`

// CreateSeason inserts a season and assigns its ID.
func (db *DB) CreateSeason(s *Season) error {
	themes, arc, err := seasonJSON(s)
	if err != nil {
		return err
	}

	result, err := db.conn.Exec(
		`INSERT INTO seasons
		(title, start_date, end_date, episode_count, description, mode, dominant_themes, arc_analysis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Title, s.StartDate, s.EndDate, s.EpisodeCount, s.Description, s.Mode, themes, arc,
	)
	if err != nil {
		return fmt.Errorf("inserting season: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// UpdateSeason writes every column of an existing season.
func (db *DB) UpdateSeason(s *Season) error {
	themes, arc, err := seasonJSON(s)
	if err != nil {
		return err
	}

	result, err := db.conn.Exec(
		`UPDATE seasons SET title = ?, start_date = ?, end_date = ?, episode_count = ?,
		description = ?, mode = ?, dominant_themes = ?, arc_analysis = ?
		WHERE id = ?`,
		s.Title, s.StartDate, s.EndDate, s.EpisodeCount, s.Description, s.Mode, themes, arc, s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating season %d: %w", s.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("season %d: %w", s.ID, ErrNotFound)
	}
	return nil
}

// GetSeason returns the season with the given ID, or nil if it does not exist.
func (db *DB) GetSeason(id int64) (*Season, error) {
	row := db.conn.QueryRow("SELECT "+seasonColumns+" FROM seasons WHERE id = ?", id)
	s, err := scanSeason(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSeasons returns seasons in chronological order.
func (db *DB) ListSeasons() ([]Season, error) {
	rows, err := db.conn.Query("SELECT " + seasonColumns + " FROM seasons ORDER BY start_date ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seasons []Season
	for rows.Next() {
		s, err := scanSeason(rows)
		if err != nil {
			return nil, err
		}
		seasons = append(seasons, *s)
	}
	return seasons, rows.Err()
}

// AssignSeason links the given entries to a season.
func (db *DB) AssignSeason(seasonID int64, entryIDs []int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range entryIDs {
		if _, err := tx.Exec(
			"UPDATE diary_entries SET season_id = ?, updated_at = datetime('now') WHERE id = ?",
			seasonID, id,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClearSeasons unlinks every entry and removes all seasons.
func (db *DB) ClearSeasons() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE diary_entries SET season_id = NULL WHERE season_id IS NOT NULL"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM seasons"); err != nil {
		return err
	}
	return tx.Commit()
}

func seasonJSON(s *Season) (themes, arc *string, err error) {
	t := s.DominantThemes
	if t == nil {
		t = []string{}
	}
	themes, err = marshalNullable(t, true)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding themes: %w", err)
	}
	arc, err = marshalNullable(s.Arc, s.Arc != nil)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding arc analysis: %w", err)
	}
	return themes, arc, nil
}

func scanSeason(row rowScanner) (*Season, error) {
	var s Season
	var themes, arc *string
	if err := row.Scan(&s.ID, &s.Title, &s.StartDate, &s.EndDate, &s.EpisodeCount,
		&s.Description, &s.Mode, &themes, &arc, &s.CreatedAt); err != nil {
		return nil, err
	}
	if themes != nil {
		if err := json.Unmarshal([]byte(*themes), &s.DominantThemes); err != nil {
			s.DominantThemes = nil
		}
	}
	if arc != nil {
		var a SeasonArc
		if err := json.Unmarshal([]byte(*arc), &a); err == nil {
			s.Arc = &a
		}
	}
	return &s, nil
}
