package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// CreateRecap inserts a recap and assigns its ID.
func (db *DB) CreateRecap(r *Recap) error {
	ids := r.EntryIDs
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding entry ids: %w", err)
	}

	result, err := db.conn.Exec(
		"INSERT INTO recaps (date, content, entry_ids) VALUES (?, ?, ?)",
		r.Date, r.Content, string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting recap: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// GetRecap returns the recap with the given ID, or nil if it does not exist.
func (db *DB) GetRecap(id int64) (*Recap, error) {
	row := db.conn.QueryRow(
		"SELECT id, date, content, entry_ids, created_at FROM recaps WHERE id = ?", id,
	)

	var r Recap
	var ids *string
	if err := row.Scan(&r.ID, &r.Date, &r.Content, &ids, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if ids != nil {
		if err := json.Unmarshal([]byte(*ids), &r.EntryIDs); err != nil {
			r.EntryIDs = nil
		}
	}
	return &r, nil
}
