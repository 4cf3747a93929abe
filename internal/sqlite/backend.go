// Package sqlite implements a Datastore on SQLite through the pure-Go
// modernc.org/sqlite driver. Records live in one table keyed by
// (kind, key); a second table remembers every kind ever written.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

const backendName = types.BackendSQLite

// scanPageSize is the number of keys read per query during a scan.
const scanPageSize = 256

// Backend is a Datastore backed by a single SQLite database file.
type Backend struct {
	mu   sync.RWMutex
	open bool
	path string
	db   *sql.DB
}

// Open opens or creates the database at path and applies the schema. The
// parent directory is created if needed. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Backend, error) {
	if path == "" {
		path = types.DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, types.NewBackendError(backendName, "open", "", "", err)
	}
	// One connection keeps ":memory:" a single database and serializes
	// writers the way SQLite wants.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, types.NewBackendError(backendName, "schema", "", "", err)
	}
	return &Backend{open: true, path: path, db: db}, nil
}

// Path returns the database file path.
func (b *Backend) Path() string { return b.path }

// Close closes the database. Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	b.open = false
	if err := b.db.Close(); err != nil {
		return types.NewBackendError(backendName, "close", "", "", err)
	}
	return nil
}
