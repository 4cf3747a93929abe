// Package datastore opens the Datastore named by a types.Config. It is the
// only place that knows every backend; callers outside this module use it
// instead of importing the internal backend packages.
//
// Example:
//
//	store, err := datastore.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    Path:    ".ndb/datastore.db",
//	})
//	if err != nil {
//	    return err
//	}
//	db, err := ndb.Open(store)
package datastore

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/ndb/internal/bolt"
	"github.com/mesh-intelligence/ndb/internal/dynamo"
	"github.com/mesh-intelligence/ndb/internal/leveldb"
	"github.com/mesh-intelligence/ndb/internal/memory"
	"github.com/mesh-intelligence/ndb/internal/sqlite"
	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Open validates cfg and opens the configured backend. On-disk backends
// create the parent directory of cfg.Path, which defaults to
// types.DefaultPath.
func Open(cfg types.Config) (types.Datastore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	path := cfg.Path
	if path == "" && cfg.OnDisk() {
		path = types.DefaultPath
	}

	var (
		store types.Datastore
		err   error
	)
	switch cfg.Backend {
	case types.BackendMemory:
		store = memory.NewBackend()
	case types.BackendSQLite:
		store, err = asDatastore(sqlite.Open(path))
	case types.BackendBolt:
		store, err = asDatastore(bolt.Open(path))
	case types.BackendLevelDB:
		store, err = asDatastore(leveldb.Open(path))
	case types.BackendDynamoDB:
		store, err = asDatastore(dynamo.Open(context.Background(), *cfg.DynamoDB))
	default:
		err = fmt.Errorf("%w: %q", types.ErrBackendUnknown, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s datastore: %w", cfg.Backend, err)
	}
	return store, nil
}

// asDatastore drops the concrete type without turning a nil pointer into a
// non-nil interface.
func asDatastore[T types.Datastore](b T, err error) (types.Datastore, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
