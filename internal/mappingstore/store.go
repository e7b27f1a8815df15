// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mappingstore persists learned and declared field mappings across
// runs. Repeated observations raise a mapping's score; conflicting ones are
// kept as alternatives instead of overwriting the accepted destination.
package mappingstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/template-converter/pkg/types"
)

const (
	dbFile        = "mappings.db"
	schemaVersion = "1.1"
)

// ErrNotFound is returned when a source field or array has no mapping.
var ErrNotFound = errors.New("mapping not found")

// Store manages the mapping SQLite database. Writers must be serialized by
// the caller; each write runs in its own transaction.
type Store struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

// NewStore opens or creates dir/mappings.db and its schema.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = types.DefaultConfig().Store.Dir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir, now: func() time.Time { return time.Now().UTC() }}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbFile)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS mappings (
			source_field TEXT PRIMARY KEY,
			destination_field TEXT NOT NULL,
			score INTEGER NOT NULL,
			source TEXT NOT NULL,
			sample_values TEXT,
			projects TEXT,
			times_seen INTEGER NOT NULL,
			first_seen TEXT,
			last_seen TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS alternatives (
			source_field TEXT NOT NULL REFERENCES mappings(source_field) ON DELETE CASCADE,
			destination_field TEXT NOT NULL,
			times_seen INTEGER NOT NULL,
			projects TEXT,
			PRIMARY KEY (source_field, destination_field)
		)`,
		`CREATE TABLE IF NOT EXISTS array_mappings (
			source_array TEXT PRIMARY KEY,
			destination_array TEXT NOT NULL,
			field_mappings TEXT,
			score INTEGER NOT NULL,
			source TEXT NOT NULL,
			times_seen INTEGER NOT NULL,
			projects TEXT,
			first_seen TEXT,
			last_seen TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mappings_score ON mappings(score)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('version', '` + schemaVersion + `')`,
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('projects_analyzed', '0')`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) touch(ctx context.Context, db execer) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('last_updated', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		s.now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}
	return nil
}

// RecordProjectAnalyzed increments the analyzed-projects counter.
func (s *Store) RecordProjectAnalyzed(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE meta SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT) WHERE key = 'projects_analyzed'`)
	if err != nil {
		return fmt.Errorf("recording analyzed project: %w", err)
	}
	return s.touch(ctx, s.db)
}

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func decodeList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
