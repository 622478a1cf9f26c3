// Package storage persists conversations in sqlite.
//
// A conversation is an ordered list of messages; each message is an
// ordered list of content blocks. Messages are only written through
// AppendMessages, which commits a whole turn or nothing.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const (
	idCharset  = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idLength   = 6
	idAttempts = 10
)

// Store is a sqlite-backed conversation store.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path. The special
// path ":memory:" opens an in-memory database for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// newID generates a short unique ID, retrying on collision against
// the given existence check.
func newID(ctx context.Context, exists func(ctx context.Context, id string) (bool, error)) (string, error) {
	for attempt := 0; attempt < idAttempts; attempt++ {
		id, err := gonanoid.Generate(idCharset, idLength)
		if err != nil {
			return "", fmt.Errorf("generating id: %w", err)
		}
		taken, err := exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("exhausted %d attempts generating a unique id", idAttempts)
}
