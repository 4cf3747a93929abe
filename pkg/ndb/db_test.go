package ndb

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/ndb/internal/memory"
	"github.com/mesh-intelligence/ndb/pkg/types"
)

func TestOpenRejectsSecondDatastore(t *testing.T) {
	first := openMemory(t)

	_, err := Open(memory.NewBackend(), WithName("second"))
	require.Error(t, err)
	assert.True(t, types.IsDuplicateOpen(err))
	var dup *types.DuplicateOpenError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "memory", dup.Active)

	// The first DB is untouched.
	_, err = first.Datastore()
	assert.NoError(t, err)
}

func TestCloseFreesSlot(t *testing.T) {
	db, err := Open(memory.NewBackend())
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "Close is idempotent")

	again, err := Open(memory.NewBackend())
	require.NoError(t, err)
	require.NoError(t, again.Close())

	// Closing a stale handle must not free the slot held by another DB.
	third, err := Open(memory.NewBackend())
	require.NoError(t, err)
	defer third.Close()
	require.NoError(t, db.Close())
	_, err = Open(memory.NewBackend())
	assert.True(t, types.IsDuplicateOpen(err))
}

func TestOpenNilStore(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)
}

func TestDefaultName(t *testing.T) {
	db, err := Open(memory.NewBackend())
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "*memory.Backend", db.Name())
}

func TestWith(t *testing.T) {
	m := NewModel("Counter", Integer("n"))
	var key string
	err := With(memory.NewBackend(), func(db *DB) error {
		var err error
		key, err = m.Put(db, newEntity(m, "").MustSet("n", 1))
		return err
	})
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	// The slot is free again, even when fn fails.
	errBoom := errors.New("boom")
	err = With(memory.NewBackend(), func(*DB) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)

	db, err := Open(memory.NewBackend())
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOperationsAfterClose(t *testing.T) {
	db := openMemory(t)
	m := userModel()
	require.NoError(t, db.Close())

	_, err := m.Put(db, newEntity(m, "").MustSet("name", "x"))
	assert.ErrorIs(t, err, types.ErrDatastoreClosed)
	_, err = m.GetByID(db, "x")
	assert.ErrorIs(t, err, types.ErrDatastoreClosed)
	_, err = db.Kinds()
	assert.ErrorIs(t, err, types.ErrDatastoreClosed)
}

func TestKinds(t *testing.T) {
	db := openMemory(t)
	users := userModel()
	messages := NewModel("Message", String("body"))

	_, err := users.Put(db, newEntity(users, "").MustSet("name", "ada"))
	require.NoError(t, err)
	_, err = messages.Put(db, newEntity(messages, "").MustSet("body", "hi"))
	require.NoError(t, err)

	kinds, err := db.Kinds()
	require.NoError(t, err)
	assert.Equal(t, []string{"Message", "User"}, kinds)
}

func TestLifecycleIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	db, err := Open(memory.NewBackend(), WithLogger(zap.New(core)), WithName("mem"))
	require.NoError(t, err)

	m := NewModel("Note", String("text"))
	_, err = m.Put(db, newEntity(m, "n1").MustSet("text", "x"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.Equal(t, 1, logs.FilterMessage("datastore opened").Len())
	assert.Equal(t, 1, logs.FilterMessage("put").FilterField(zap.String("key", "n1")).Len())
	assert.Equal(t, 1, logs.FilterMessage("closing datastore").Len())
}

type failingStore struct{ types.Datastore }

func (failingStore) Close() error { return errors.New("disk on fire") }

func TestCloseReportsStoreError(t *testing.T) {
	db, err := Open(failingStore{memory.NewBackend()})
	require.NoError(t, err)
	assert.ErrorContains(t, db.Close(), "disk on fire")

	// The slot is released regardless.
	again, err := Open(memory.NewBackend())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

// probingStore tries to open a second DB while it is being closed.
type probingStore struct {
	types.Datastore
	openErr error
}

func (s *probingStore) Close() error {
	db, err := Open(memory.NewBackend())
	if err == nil {
		db.Close()
	}
	s.openErr = err
	return s.Datastore.Close()
}

func TestSlotHeldWhileStoreCloses(t *testing.T) {
	store := &probingStore{Datastore: memory.NewBackend()}
	db, err := Open(store)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.True(t, types.IsDuplicateOpen(store.openErr))

	again, err := Open(memory.NewBackend())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

// emptyStore is a Datastore with nothing in it, for checking that DB
// depends only on the interface.
type emptyStore struct{}

func (emptyStore) Set(string, string, string) error { return nil }

func (emptyStore) Get(string, string) (string, bool, error) { return "", false, nil }

func (emptyStore) Delete(string, string) error { return nil }

func (emptyStore) ListKinds() ([]string, error) { return nil, nil }

func (emptyStore) Close() error { return nil }

func (emptyStore) ScanKeys(string) iter.Seq2[string, error] {
	return func(func(string, error) bool) {}
}

func TestCustomDatastore(t *testing.T) {
	err := With(emptyStore{}, func(db *DB) error {
		n, err := userModel().Query(db).Count()
		assert.Equal(t, 0, n)
		return err
	})
	assert.NoError(t, err)
}
