package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ModelRow represents a row in the models table.
type ModelRow struct {
	Path      string    `json:"path"`
	ID        string    `json:"id"`
	Hash      string    `json:"hash,omitempty"`
	Tags      []string  `json:"tags"`
	Hidden    bool      `json:"hidden"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpsertModel inserts or replaces a model row.
func (db *DB) UpsertModel(m ModelRow) error {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(m.Tags)
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO models (path, model_id, hash, tags, hidden, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			model_id   = excluded.model_id,
			hash       = excluded.hash,
			tags       = excluded.tags,
			hidden     = excluded.hidden,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, m.Path, m.ID, m.Hash, string(tagsJSON), m.Hidden, m.Checksum, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert model: %w", err)
	}
	return nil
}

// DeleteModel removes a model row.
func (db *DB) DeleteModel(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM models WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete model: %w", err)
	}
	return nil
}

// GetModel returns the row for path, or nil when it is not indexed.
func (db *DB) GetModel(path string) (*ModelRow, error) {
	row := db.conn.QueryRow(`
		SELECT path, model_id, hash, tags, hidden, checksum, updated_at
		FROM models WHERE path = ?`, path)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get model: %w", err)
	}
	return m, nil
}

// ListModels returns a page of models ordered by path, optionally restricted
// to those carrying tag (case-insensitive), plus the total match count.
func (db *DB) ListModels(limit, offset int, tag string) ([]ModelRow, int, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	where := ""
	args := []any{}
	if tag != "" {
		where = `WHERE EXISTS (SELECT 1 FROM json_each(models.tags) WHERE lower(json_each.value) = lower(?))`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM models `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count models: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, model_id, hash, tags, hidden, checksum, updated_at
		FROM models `+where+` ORDER BY path LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list models: %w", err)
	}
	defer rows.Close()

	var out []ModelRow
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path → sidecar checksum for every indexed model.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM models`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(r rowScanner) (*ModelRow, error) {
	var (
		m    ModelRow
		tags string
	)
	if err := r.Scan(&m.Path, &m.ID, &m.Hash, &tags, &m.Hidden, &m.Checksum, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil || m.Tags == nil {
		m.Tags = []string{}
	}
	return &m, nil
}
