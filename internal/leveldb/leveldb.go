// Package leveldb implements a Datastore on goleveldb, an ordered
// log-structured byte store. Records are stored under composite keys from
// package keycodec.
package leveldb

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/mesh-intelligence/ndb/internal/keycodec"
	"github.com/mesh-intelligence/ndb/pkg/types"
)

const backendName = types.BackendLevelDB

// Backend is a Datastore over a LevelDB database directory.
type Backend struct {
	mu   sync.RWMutex
	open bool
	path string
	db   *leveldb.DB
}

// Open opens or creates the database directory at path.
func Open(path string) (*Backend, error) {
	if path == "" {
		path = types.DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, types.NewBackendError(backendName, "open", "", "", err)
	}
	return &Backend{open: true, path: path, db: db}, nil
}

// OpenMemory opens a LevelDB instance held entirely in memory.
func OpenMemory() (*Backend, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, types.NewBackendError(backendName, "open", "", "", err)
	}
	return &Backend{open: true, db: db}, nil
}

// Path returns the database directory, or "" for an in-memory instance.
func (b *Backend) Path() string { return b.path }

// Set stores payload under (kind, key).
func (b *Backend) Set(kind, key, payload string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return types.ErrDatastoreClosed
	}
	err := b.db.Put(keycodec.Encode(kind, key), []byte(payload), nil)
	return types.NewBackendError(backendName, "set", kind, key, err)
}

// Get returns the payload stored under (kind, key).
func (b *Backend) Get(kind, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return "", false, types.ErrDatastoreClosed
	}
	v, err := b.db.Get(keycodec.Encode(kind, key), nil)
	if err == leveldb.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, types.NewBackendError(backendName, "get", kind, key, err)
	}
	return string(v), true, nil
}

// Delete removes (kind, key). Deleting a missing key is not an error.
func (b *Backend) Delete(kind, key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return types.ErrDatastoreClosed
	}
	err := b.db.Delete(keycodec.Encode(kind, key), nil)
	return types.NewBackendError(backendName, "delete", kind, key, err)
}

// ScanKeys yields the keys of kind in byte order from a snapshot taken
// when iteration starts. Writes made during the scan are not seen.
func (b *Backend) ScanKeys(kind string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		b.mu.RLock()
		if !b.open {
			b.mu.RUnlock()
			yield("", types.ErrDatastoreClosed)
			return
		}
		snap, err := b.db.GetSnapshot()
		b.mu.RUnlock()
		if err != nil {
			yield("", types.NewBackendError(backendName, "scan", kind, "", err))
			return
		}
		defer snap.Release()

		it := snap.NewIterator(util.BytesPrefix(keycodec.Prefix(kind)), nil)
		defer it.Release()
		for it.Next() {
			key, err := keycodec.DecodeKey(kind, it.Key())
			if err != nil {
				yield("", types.NewBackendError(backendName, "scan", kind, "", err))
				return
			}
			if !yield(key, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield("", types.NewBackendError(backendName, "scan", kind, "", err))
		}
	}
}

// ListKinds returns the kinds that currently hold at least one record,
// sorted, seeking past each kind's key range in turn.
func (b *Backend) ListKinds() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil, types.ErrDatastoreClosed
	}
	it := b.db.NewIterator(nil, nil)
	defer it.Release()

	kinds := []string{}
	for ok := it.First(); ok; ok = it.Seek(keycodec.After(kinds[len(kinds)-1])) {
		kind, _, err := keycodec.Decode(it.Key())
		if err != nil {
			return nil, types.NewBackendError(backendName, "kinds", "", "", err)
		}
		kinds = append(kinds, kind)
	}
	if err := it.Error(); err != nil {
		return nil, types.NewBackendError(backendName, "kinds", "", "", err)
	}
	return kinds, nil
}

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
