package sqlite

import (
	"database/sql"
	"errors"
	"iter"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Set stores payload under (kind, key) and records the kind.
func (b *Backend) Set(kind, key, payload string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return types.ErrDatastoreClosed
	}

	tx, err := b.db.Begin()
	if err != nil {
		return types.NewBackendError(backendName, "set", kind, key, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR IGNORE INTO kinds (kind) VALUES (?)", kind); err != nil {
		return types.NewBackendError(backendName, "set", kind, key, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO records (kind, key, payload) VALUES (?, ?, ?)
		 ON CONFLICT (kind, key) DO UPDATE SET payload = excluded.payload`,
		kind, key, payload,
	); err != nil {
		return types.NewBackendError(backendName, "set", kind, key, err)
	}
	if err := tx.Commit(); err != nil {
		return types.NewBackendError(backendName, "set", kind, key, err)
	}
	return nil
}

// Get returns the payload stored under (kind, key).
func (b *Backend) Get(kind, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return "", false, types.ErrDatastoreClosed
	}

	var payload string
	err := b.db.QueryRow("SELECT payload FROM records WHERE kind = ? AND key = ?", kind, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, types.NewBackendError(backendName, "get", kind, key, err)
	}
	return payload, true, nil
}

// Delete removes (kind, key) if present.
func (b *Backend) Delete(kind, key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return types.ErrDatastoreClosed
	}

	if _, err := b.db.Exec("DELETE FROM records WHERE kind = ? AND key = ?", kind, key); err != nil {
		return types.NewBackendError(backendName, "delete", kind, key, err)
	}
	return nil
}

// ScanKeys yields the keys of kind in ascending order. Keys are read a page
// at a time, each page starting after the last key seen, so no statement
// stays open while the caller works.
func (b *Backend) ScanKeys(kind string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		after, first := "", true
		for {
			page, err := b.keyPage(kind, after, first)
			if err != nil {
				yield("", err)
				return
			}
			for _, k := range page {
				if !yield(k, nil) {
					return
				}
			}
			if len(page) < scanPageSize {
				return
			}
			after, first = page[len(page)-1], false
		}
	}
}

func (b *Backend) keyPage(kind, after string, first bool) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil, types.ErrDatastoreClosed
	}

	var (
		rows *sql.Rows
		err  error
	)
	if first {
		rows, err = b.db.Query(
			"SELECT key FROM records WHERE kind = ? ORDER BY key LIMIT ?",
			kind, scanPageSize)
	} else {
		rows, err = b.db.Query(
			"SELECT key FROM records WHERE kind = ? AND key > ? ORDER BY key LIMIT ?",
			kind, after, scanPageSize)
	}
	if err != nil {
		return nil, types.NewBackendError(backendName, "scan", kind, "", err)
	}
	defer rows.Close()

	page := make([]string, 0, scanPageSize)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, types.NewBackendError(backendName, "scan", kind, "", err)
		}
		page = append(page, k)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewBackendError(backendName, "scan", kind, "", err)
	}
	return page, nil
}

// ListKinds returns every kind ever written, sorted.
func (b *Backend) ListKinds() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil, types.ErrDatastoreClosed
	}

	rows, err := b.db.Query("SELECT kind FROM kinds ORDER BY kind")
	if err != nil {
		return nil, types.NewBackendError(backendName, "kinds", "", "", err)
	}
	defer rows.Close()

	kinds := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, types.NewBackendError(backendName, "kinds", "", "", err)
		}
		kinds = append(kinds, k)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewBackendError(backendName, "kinds", "", "", err)
	}
	return kinds, nil
}
