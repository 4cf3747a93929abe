package ndb

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// active holds the one DB that may be open in the process.
var active struct {
	mu sync.Mutex
	db *DB
}

// DB is an open datastore handle. Every Model and Query operation takes a
// DB explicitly. A DB is safe for concurrent use; consistency between
// concurrent writers is whatever the underlying Datastore provides.
type DB struct {
	store  types.Datastore
	name   string
	logger *zap.Logger
	closed atomic.Bool
}

// Option configures a DB at Open.
type Option func(*DB)

// WithLogger sets the logger used for lifecycle and write events.
func WithLogger(logger *zap.Logger) Option {
	return func(db *DB) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithName labels the DB in logs and in DuplicateOpenError.
func WithName(name string) Option {
	return func(db *DB) { db.name = name }
}

// Open makes store the active datastore. It fails with a DuplicateOpenError
// while another DB is open; the active DB is never replaced silently.
func Open(store types.Datastore, opts ...Option) (*DB, error) {
	if store == nil {
		return nil, errors.New("ndb: nil datastore")
	}
	db := &DB{
		store:  store,
		name:   fmt.Sprintf("%T", store),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(db)
	}

	active.mu.Lock()
	defer active.mu.Unlock()
	if active.db != nil {
		db.logger.Error("datastore already open",
			zap.String("active", active.db.name), zap.String("requested", db.name))
		return nil, &types.DuplicateOpenError{Active: active.db.name}
	}
	active.db = db
	db.logger.Info("datastore opened", zap.String("datastore", db.name))
	return db, nil
}

// With opens store, runs fn and closes the DB whatever fn returns.
func With(store types.Datastore, fn func(db *DB) error, opts ...Option) (err error) {
	db, err := Open(store, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(db)
}

// Close closes the underlying datastore, then frees the active slot. The
// slot is freed even when the datastore fails to close. Closing a closed
// DB is a no-op.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	db.logger.Info("closing datastore", zap.String("datastore", db.name))
	err := db.store.Close()

	active.mu.Lock()
	if active.db == db {
		active.db = nil
	}
	active.mu.Unlock()

	if err != nil {
		return fmt.Errorf("closing %s: %w", db.name, err)
	}
	return nil
}

// Name returns the label given at Open.
func (db *DB) Name() string { return db.name }

// Logger returns the DB logger.
func (db *DB) Logger() *zap.Logger { return db.logger }

// Datastore returns the underlying store, or ErrDatastoreClosed once the DB
// is closed.
func (db *DB) Datastore() (types.Datastore, error) {
	if db.closed.Load() {
		return nil, types.ErrDatastoreClosed
	}
	return db.store, nil
}

// Kinds lists every kind that has held a record.
func (db *DB) Kinds() ([]string, error) {
	store, err := db.Datastore()
	if err != nil {
		return nil, err
	}
	return store.ListKinds()
}
