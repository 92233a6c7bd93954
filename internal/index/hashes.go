package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CachedHash returns the stored hash for path when the recorded size and
// modification time still match.
func (db *DB) CachedHash(path string, size int64, modTime time.Time) (string, bool, error) {
	var hash string
	err := db.conn.QueryRow(`
		SELECT hash FROM file_hashes WHERE path = ? AND size = ? AND mod_time = ?`,
		path, size, modTime.UnixNano()).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: cached hash: %w", err)
	}
	return hash, true, nil
}

// PutHash records the hash of path at the given size and modification time.
func (db *DB) PutHash(path string, size int64, modTime time.Time, hash string) error {
	_, err := db.conn.Exec(`
		INSERT INTO file_hashes (path, size, mod_time, hash) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size     = excluded.size,
			mod_time = excluded.mod_time,
			hash     = excluded.hash
	`, path, size, modTime.UnixNano(), hash)
	if err != nil {
		return fmt.Errorf("index: put hash: %w", err)
	}
	return nil
}

// DeleteHash forgets the cached hash of path.
func (db *DB) DeleteHash(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM file_hashes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete hash: %w", err)
	}
	return nil
}
