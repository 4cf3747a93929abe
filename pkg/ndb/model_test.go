package ndb

import (
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

func TestNewModelPanics(t *testing.T) {
	assert.Panics(t, func() { NewModel("") })
	assert.Panics(t, func() { NewModel("User", nil) })
	assert.Panics(t, func() { NewModel("User", String("a"), Integer("a")) })
	assert.Panics(t, func() { NewModel("User", userModel().Field("ghost")) })
}

func TestModelLookups(t *testing.T) {
	m := userModel()
	assert.Equal(t, "User", m.Kind())
	assert.Len(t, m.Properties(), 7)
	assert.Equal(t, "name", m.Properties()[0].Name())

	p, ok := m.Property("age")
	require.True(t, ok)
	assert.Same(t, p, m.Field("age"))

	_, ok = m.Property("ghost")
	assert.False(t, ok)
}

func TestNewKeyIsUUIDv7Hex(t *testing.T) {
	k := NewKey()
	assert.Len(t, k, 32)
	b, err := hex.DecodeString(k)
	require.NoError(t, err)
	id, err := uuid.FromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, k, NewKey())
}

// --- Put and GetByID ---

func TestPutGeneratesKeyAndRoundTrips(t *testing.T) {
	db := openMemory(t)
	m := userModel()
	now := time.Date(2025, 1, 2, 3, 4, 5, 678901234, time.UTC)
	freezeClock(t, now)

	e, err := m.New("", map[string]any{"name": "ada", "age": 36})
	require.NoError(t, err)
	key, err := m.Put(db, e)
	require.NoError(t, err)
	assert.Len(t, key, 32)
	assert.Equal(t, key, e.Key())

	got, err := m.GetByID(db, key)
	require.NoError(t, err)
	assert.Equal(t, key, got.Key())
	assert.Equal(t, "ada", got.String("name"))
	assert.Equal(t, int64(36), got.Int("age"))
	assert.Equal(t, 0.0, got.Get("score"))
	assert.Equal(t, true, got.Get("active"))
	assert.Equal(t, "member", got.Get("role"))
	assert.Equal(t, now.Truncate(time.Microsecond), got.Time("created"))
	assert.Equal(t, now.Truncate(time.Microsecond), got.Time("updated"))
}

func TestPutRoundTripsNanosecondTimestamp(t *testing.T) {
	db := openMemory(t)
	m := NewModel("Event", Timestamp("at"))
	at := time.Date(2025, 3, 4, 5, 6, 7, 123456789, time.FixedZone("CET", 3600))

	e, err := m.New("", map[string]any{"at": at})
	require.NoError(t, err)
	want, err := m.ToDict(e, nil, nil)
	require.NoError(t, err)

	key, err := m.Put(db, e)
	require.NoError(t, err)
	got, err := m.GetByID(db, key)
	require.NoError(t, err)
	fetched, err := m.ToDict(got, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, want, fetched)
	assert.Equal(t, time.Date(2025, 3, 4, 4, 6, 7, 123456000, time.UTC), got.Time("at"))
}

func TestPutWithExplicitKey(t *testing.T) {
	db := openMemory(t)
	m := userModel()

	e, err := m.New("alice", map[string]any{"name": "alice"})
	require.NoError(t, err)
	key, err := m.Put(db, e)
	require.NoError(t, err)
	assert.Equal(t, "alice", key)

	got, err := m.GetByID(db, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.String("name"))
}

func TestPutStoresPortablePayload(t *testing.T) {
	db := openMemory(t)
	m := NewModel("Event", String("title"), Timestamp("at"))
	at := time.Date(2024, 3, 1, 12, 30, 15, 123456000, time.UTC)

	e := newEntity(m, "e1").MustSet("title", "launch").MustSet("at", at)
	_, err := m.Put(db, e)
	require.NoError(t, err)

	store, err := db.Datastore()
	require.NoError(t, err)
	payload, found, err := store.Get("Event", "e1")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"title":"launch","at":1709296215.123456}`, payload)
}

func TestPutValidationFailureWritesNothing(t *testing.T) {
	db := openMemory(t)
	m := userModel()

	e, err := m.New("k", map[string]any{"age": 3})
	require.NoError(t, err)
	_, err = m.Put(db, e)
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))

	e.MustSet("name", "bob").MustSet("role", "owner")
	_, err = m.Put(db, e)
	assert.True(t, types.IsValidationError(err))

	_, err = m.GetByID(db, "k")
	assert.True(t, types.IsNotFound(err))
}

func TestPutAutoTimestamps(t *testing.T) {
	db := openMemory(t)
	m := userModel()

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	freezeClock(t, first)
	e := newEntity(m, "").MustSet("name", "ada")
	key, err := m.Put(db, e)
	require.NoError(t, err)
	assert.Equal(t, first, e.Time("created"))

	second := first.Add(time.Hour)
	timeNow = func() time.Time { return second }
	_, err = m.Put(db, e)
	require.NoError(t, err)

	got, err := m.GetByID(db, key)
	require.NoError(t, err)
	assert.Equal(t, first, got.Time("created"), "AutoNowAdd keeps the first stamp")
	assert.Equal(t, second, got.Time("updated"), "AutoNow restamps every write")
}

func TestPutRejectsOtherModel(t *testing.T) {
	db := openMemory(t)
	users := userModel()
	messages := NewModel("Message", String("body"))

	e := newEntity(messages, "m1")
	_, err := users.Put(db, e)
	assert.ErrorIs(t, err, ErrKindMismatch)
	_, err = users.Delete(db, e)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestGetByIDNotFound(t *testing.T) {
	db := openMemory(t)
	m := userModel()

	_, err := m.GetByID(db, "missing")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
	var nf *types.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "User", nf.Kind)
	assert.Equal(t, "missing", nf.Key)

	_, err = m.GetByID(db, "")
	assert.True(t, types.IsNotFound(err))
}

func TestGetByIDCorruptPayload(t *testing.T) {
	db := openMemory(t)
	m := userModel()
	store, err := db.Datastore()
	require.NoError(t, err)

	require.NoError(t, store.Set("User", "bad", "not json"))
	_, err = m.GetByID(db, "bad")
	assert.True(t, types.IsBackendError(err))

	require.NoError(t, store.Set("User", "wrong", `{"name":12}`))
	_, err = m.GetByID(db, "wrong")
	assert.True(t, types.IsValidationError(err))
}

func TestGetByIDIgnoresUndeclaredFields(t *testing.T) {
	db := openMemory(t)
	m := NewModel("Note", String("text"))
	store, err := db.Datastore()
	require.NoError(t, err)

	require.NoError(t, store.Set("Note", "n1", `{"text":"hi","legacy":true}`))
	e, err := m.GetByID(db, "n1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "hi"}, e.Values())
}

// --- Delete ---

func TestDelete(t *testing.T) {
	db := openMemory(t)
	m := userModel()

	e := newEntity(m, "").MustSet("name", "ada")
	key, err := m.Put(db, e)
	require.NoError(t, err)

	deleted, err := m.Delete(db, e)
	require.NoError(t, err)
	assert.Equal(t, key, deleted)

	_, err = m.GetByID(db, key)
	assert.True(t, types.IsNotFound(err))

	// A record already gone is not an error.
	_, err = m.Delete(db, e)
	assert.NoError(t, err)
}

func TestDeleteWithoutKey(t *testing.T) {
	db := openMemory(t)
	m := userModel()

	_, err := m.Delete(db, newEntity(m, ""))
	assert.True(t, types.IsNotFound(err))
}

// --- GetOrInsert ---

func TestGetOrInsertInserts(t *testing.T) {
	db := openMemory(t)
	m := userModel()

	e, err := m.GetOrInsert(db, "ada", map[string]any{"name": "Ada", "ignored": 1})
	require.NoError(t, err)
	assert.Equal(t, "ada", e.Key())
	assert.Equal(t, "Ada", e.String("name"))
	assert.Equal(t, "member", e.Get("role"))
}

func TestGetOrInsertKeepsExisting(t *testing.T) {
	db := openMemory(t)
	m := userModel()

	_, err := m.Put(db, newEntity(m, "ada").MustSet("name", "Ada").MustSet("age", 36))
	require.NoError(t, err)
	store, err := db.Datastore()
	require.NoError(t, err)
	before, _, err := store.Get("User", "ada")
	require.NoError(t, err)

	e, err := m.GetOrInsert(db, "ada", map[string]any{"name": "Other", "age": 1})
	require.NoError(t, err)
	assert.Equal(t, "Ada", e.String("name"))
	assert.Equal(t, int64(36), e.Int("age"))

	after, _, err := store.Get("User", "ada")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGetOrInsertTwiceStoresOnce(t *testing.T) {
	db := openMemory(t)
	m := NewModel("Account", String("email", Required()))

	first, err := m.GetOrInsert(db, "a@x.com", map[string]any{"email": "a@x.com"})
	require.NoError(t, err)
	second, err := m.GetOrInsert(db, "a@x.com", map[string]any{"email": "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, first.Values(), second.Values())
	assert.Equal(t, first.Key(), second.Key())

	all, err := m.Query(db).All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a@x.com", all[0].String("email"))
}

func TestGetOrInsertRequiresKey(t *testing.T) {
	db := openMemory(t)
	m := NewModel("Account", String("email", Required()))

	for range 2 {
		e, err := m.GetOrInsert(db, "", map[string]any{"email": "a@x.com"})
		assert.Nil(t, e)
		assert.True(t, types.IsValidationError(err))
	}
	n, err := m.Query(db).Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetOrInsertValidationError(t *testing.T) {
	db := openMemory(t)
	m := userModel()

	_, err := m.GetOrInsert(db, "x", map[string]any{"age": 3})
	assert.True(t, types.IsValidationError(err))
}

// --- Entities and ToDict ---

func TestNewRejectsUnknownField(t *testing.T) {
	m := userModel()
	_, err := m.New("", map[string]any{"nickname": "x"})
	assert.True(t, types.IsUnknownProperty(err))

	e := newEntity(m, "")
	assert.True(t, types.IsUnknownProperty(e.Set("nickname", "x")))
	assert.Panics(t, func() { e.MustSet("nickname", "x") })
	assert.Nil(t, e.Get("nickname"))
}

func TestEntityTypedAccessors(t *testing.T) {
	m := userModel()
	e := newEntity(m, "k").MustSet("name", "ada").MustSet("age", int32(4)).
		MustSet("score", float32(1.5)).MustSet("active", true)

	assert.Equal(t, "k", e.Key())
	assert.Equal(t, "User", e.Kind())
	assert.Same(t, m, e.Model())
	assert.Equal(t, "ada", e.String("name"))
	assert.Equal(t, int64(4), e.Int("age"))
	assert.Equal(t, 1.5, e.Float("score"))
	assert.True(t, e.Bool("active"))
	assert.True(t, e.Time("created").IsZero())
	assert.Equal(t, "", e.String("age"))
}

func TestToDict(t *testing.T) {
	m := userModel()
	e := newEntity(m, "k").MustSet("name", "ada").MustSet("age", 36)

	all, err := m.ToDict(e, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 7)
	assert.Equal(t, "member", all["role"])
	assert.Equal(t, int64(36), all["age"])
	assert.Nil(t, all["created"])

	some, err := m.ToDict(e, []string{"name", "age", "role"}, []string{"role"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada", "age": int64(36)}, some)

	none, err := m.ToDict(e, []string{}, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = m.ToDict(newEntity(m, "k"), nil, nil)
	assert.True(t, types.IsValidationError(err))
}

func TestToDictMarshalsToJSON(t *testing.T) {
	m := NewModel("Tag", String("label"), Integer("uses", Default(0)))
	e := newEntity(m, "t").MustSet("label", "go")

	d, err := m.ToDict(e, nil, nil)
	require.NoError(t, err)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"go","uses":0}`, string(b))
}
