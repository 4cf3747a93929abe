// Package memory implements an in-memory Datastore backed by Go maps.
// Contents are lost on Close.
package memory

import (
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Backend stores payloads in a map per kind. Kinds stay listed after
// their last record is deleted.
type Backend struct {
	mu     sync.RWMutex
	closed bool
	data   map[string]map[string]string
}

// NewBackend creates an empty, open in-memory backend.
func NewBackend() *Backend {
	return &Backend{data: make(map[string]map[string]string)}
}

// Set stores payload under (kind, key).
func (b *Backend) Set(kind, key, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return types.ErrDatastoreClosed
	}
	records, ok := b.data[kind]
	if !ok {
		records = make(map[string]string)
		b.data[kind] = records
	}
	records[key] = payload
	return nil
}

// Get returns the payload stored under (kind, key).
func (b *Backend) Get(kind, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return "", false, types.ErrDatastoreClosed
	}
	payload, ok := b.data[kind][key]
	return payload, ok, nil
}

// Delete removes (kind, key) if present.
func (b *Backend) Delete(kind, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return types.ErrDatastoreClosed
	}
	delete(b.data[kind], key)
	return nil
}

// ScanKeys yields the keys of kind as they were when the scan started, in
// map order.
func (b *Backend) ScanKeys(kind string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		b.mu.RLock()
		if b.closed {
			b.mu.RUnlock()
			yield("", types.ErrDatastoreClosed)
			return
		}
		keys := slices.Collect(maps.Keys(b.data[kind]))
		b.mu.RUnlock()

		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

// ListKinds returns every kind that has held a record, sorted.
func (b *Backend) ListKinds() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, types.ErrDatastoreClosed
	}
	return slices.Sorted(maps.Keys(b.data)), nil
}

// Close drops all data. Closing twice is a no-op.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.data = nil
	return nil
}

// Len returns the number of records of kind.
func (b *Backend) Len(kind string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data[kind])
}
