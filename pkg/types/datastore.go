package types

import "iter"

// Datastore is the storage contract every backend implements. Records are
// addressed by a (kind, key) pair of strings and hold one opaque payload.
// The entity layer never looks inside a backend; it only calls these six
// operations.
type Datastore interface {
	// Set inserts or overwrites the payload stored under (kind, key).
	Set(kind, key, payload string) error

	// Get returns the payload stored under (kind, key). found is false
	// when no record exists; that is not an error.
	Get(kind, key string) (payload string, found bool, err error)

	// Delete removes the record under (kind, key). Deleting an absent
	// record is a no-op.
	Delete(kind, key string) error

	// ScanKeys yields the keys of one kind in backend-defined order.
	// Callers must not assume the order is sorted or insertion order.
	// An error ends the sequence.
	ScanKeys(kind string) iter.Seq2[string, error]

	// ListKinds returns the sorted, deduplicated set of kinds that have
	// held at least one record.
	ListKinds() ([]string, error)

	// Close releases backend resources. Closing twice is a no-op; every
	// other operation fails with ErrDatastoreClosed afterwards.
	Close() error
}
