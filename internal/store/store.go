// Package store persists session state as durable key-value pairs on a
// pluggable SQLite/Turso backend. Writes are last-writer-wins; all callers
// run on the same process so no stronger guarantee is needed.
package store

import (
	"database/sql"
	"log"
	"time"
)

// Well-known session state keys.
const (
	KeyToken       = "token"
	KeyUser        = "user"
	KeyBrands      = "brands"
	KeyActiveBrand = "activeBrand"
)

type Store struct {
	db *sql.DB
}

// New creates a new Store from a Config.
// Use ConfigFromEnv() to create config from environment variables.
func New(cfg Config) (*Store, error) {
	backend, err := NewDataBackend(cfg)
	if err != nil {
		return nil, err
	}

	db, err := backend.Connect()
	if err != nil {
		return nil, err
	}

	log.Printf("Database: %s", backend.Description())

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS export_log (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		location TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_export_log_created_at ON export_log(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the stored value for key. The second return is false when
// the key is absent.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM session_state WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts a key. Last writer wins.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// Delete removes a single key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM session_state WHERE key = ?`, key)
	return err
}

// Clear wipes all session state. Used on logout.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM session_state`)
	return err
}

// ExportRecord is one logged CSV export.
type ExportRecord struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Location  string    `json:"location"`
	RowCount  int       `json:"rowCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// LogExport records a completed CSV export.
func (s *Store) LogExport(rec *ExportRecord) error {
	rec.CreatedAt = time.Now()
	_, err := s.db.Exec(
		`INSERT INTO export_log (id, filename, location, row_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.Location, rec.RowCount, rec.CreatedAt,
	)
	return err
}

// ListExports returns the most recent exports, newest first.
func (s *Store) ListExports(limit int) ([]ExportRecord, error) {
	if limit == 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, filename, location, row_count, created_at FROM export_log
		 ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []ExportRecord
	for rows.Next() {
		var r ExportRecord
		if err := rows.Scan(&r.ID, &r.Filename, &r.Location, &r.RowCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}

	return recs, nil
}
