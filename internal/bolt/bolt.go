// Package bolt implements a Datastore on a bbolt B+tree file. All records
// share one bucket under composite keys from package keycodec, so a kind
// is a contiguous key range.
package bolt

import (
	"bytes"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/mesh-intelligence/ndb/internal/keycodec"
	"github.com/mesh-intelligence/ndb/pkg/types"
)

const backendName = types.BackendBolt

var recordsBucket = []byte("records")

// scanPageSize is the number of keys collected per read transaction
// during a scan.
const scanPageSize = 256

// Backend is a Datastore over a bbolt database file.
type Backend struct {
	mu   sync.RWMutex
	open bool
	path string
	db   *bbolt.DB
}

// Open opens or creates the database file at path. bbolt holds an
// exclusive file lock, so a second Open of the same path waits up to one
// second and then fails.
func Open(path string) (*Backend, error) {
	if path == "" {
		path = types.DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, types.NewBackendError(backendName, "open", "", "", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, types.NewBackendError(backendName, "open", "", "", err)
	}
	return &Backend{open: true, path: path, db: db}, nil
}

// Path returns the database file path.
func (b *Backend) Path() string { return b.path }

// Set stores payload under (kind, key).
func (b *Backend) Set(kind, key, payload string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return types.ErrDatastoreClosed
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).Put(keycodec.Encode(kind, key), []byte(payload))
	})
	return types.NewBackendError(backendName, "set", kind, key, err)
}

// Get returns the payload stored under (kind, key).
func (b *Backend) Get(kind, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return "", false, types.ErrDatastoreClosed
	}
	var (
		payload string
		found   bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		// The value is only valid inside the transaction; string() copies it.
		if v := tx.Bucket(recordsBucket).Get(keycodec.Encode(kind, key)); v != nil {
			payload, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, types.NewBackendError(backendName, "get", kind, key, err)
	}
	return payload, found, nil
}

// Delete removes (kind, key) if present.
func (b *Backend) Delete(kind, key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return types.ErrDatastoreClosed
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).Delete(keycodec.Encode(kind, key))
	})
	return types.NewBackendError(backendName, "delete", kind, key, err)
}

// ScanKeys yields the keys of kind in byte order. Each page of keys is
// read in its own short transaction that seeks past the last key seen, so
// callers may write while scanning.
func (b *Backend) ScanKeys(kind string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		prefix := keycodec.Prefix(kind)
		seek := prefix
		for {
			page, last, err := b.keyPage(kind, prefix, seek)
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
			// The smallest key strictly after last.
			seek = append(last, 0)
		}
	}
}

func (b *Backend) keyPage(kind string, prefix, seek []byte) (page []string, last []byte, err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil, nil, types.ErrDatastoreClosed
	}
	err = b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()
		for k, _ := c.Seek(seek); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			key, err := keycodec.DecodeKey(kind, k)
			if err != nil {
				return err
			}
			page = append(page, key)
			if len(page) == scanPageSize {
				last = bytes.Clone(k)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, types.NewBackendError(backendName, "scan", kind, "", err)
	}
	return page, last, nil
}

// ListKinds returns the kinds that currently hold at least one record,
// sorted. It visits one key per kind by seeking past each kind's range.
func (b *Backend) ListKinds() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil, types.ErrDatastoreClosed
	}
	kinds := []string{}
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()
		for k, _ := c.First(); k != nil; {
			kind, _, err := keycodec.Decode(k)
			if err != nil {
				return err
			}
			kinds = append(kinds, kind)
			k, _ = c.Seek(keycodec.After(kind))
		}
		return nil
	})
	if err != nil {
		return nil, types.NewBackendError(backendName, "kinds", "", "", err)
	}
	return kinds, nil
}

// Close closes the database file. Close is idempotent.
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
