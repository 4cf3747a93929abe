// Package dstest holds the behaviour every types.Datastore must share.
// Backend packages call Run from their tests with a constructor for a
// fresh, empty store.
package dstest

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Factory returns a new empty datastore. The suite closes it.
type Factory func(t *testing.T) types.Datastore

// Run executes the datastore contract against stores built by open.
func Run(t *testing.T, open Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(*testing.T, Factory)
	}{
		{"SetGet", testSetGet},
		{"GetMissing", testGetMissing},
		{"Overwrite", testOverwrite},
		{"Delete", testDelete},
		{"DeleteMissing", testDeleteMissing},
		{"KindsAreSeparate", testKindsAreSeparate},
		{"ScanKeys", testScanKeys},
		{"ScanKeysEarlyStop", testScanKeysEarlyStop},
		{"ScanKeysLarge", testScanKeysLarge},
		{"ScanWhileDeleting", testScanWhileDeleting},
		{"ListKinds", testListKinds},
		{"AwkwardNames", testAwkwardNames},
		{"Close", testClose},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) { tc.fn(t, open) })
	}
}

func newStore(t *testing.T, open Factory) types.Datastore {
	t.Helper()
	s := open(t)
	t.Cleanup(func() { s.Close() })
	return s
}

func collect(t *testing.T, s types.Datastore, kind string) []string {
	t.Helper()
	var keys []string
	for k, err := range s.ScanKeys(kind) {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func testSetGet(t *testing.T, open Factory) {
	s := newStore(t, open)
	require.NoError(t, s.Set("User", "k1", `{"name":"ada"}`))

	payload, found, err := s.Get("User", "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"name":"ada"}`, payload)
}

func testGetMissing(t *testing.T, open Factory) {
	s := newStore(t, open)
	payload, found, err := s.Get("User", "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, payload)
}

func testOverwrite(t *testing.T, open Factory) {
	s := newStore(t, open)
	require.NoError(t, s.Set("User", "k1", `{"v":1}`))
	require.NoError(t, s.Set("User", "k1", `{"v":2}`))

	payload, found, err := s.Get("User", "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"v":2}`, payload)
	assert.Equal(t, []string{"k1"}, collect(t, s, "User"))
}

func testDelete(t *testing.T, open Factory) {
	s := newStore(t, open)
	require.NoError(t, s.Set("User", "k1", `{}`))
	require.NoError(t, s.Set("User", "k2", `{}`))
	require.NoError(t, s.Delete("User", "k1"))

	_, found, err := s.Get("User", "k1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []string{"k2"}, collect(t, s, "User"))
}

func testDeleteMissing(t *testing.T, open Factory) {
	s := newStore(t, open)
	assert.NoError(t, s.Delete("User", "never-stored"))
}

func testKindsAreSeparate(t *testing.T, open Factory) {
	s := newStore(t, open)
	require.NoError(t, s.Set("User", "k", `"user"`))
	require.NoError(t, s.Set("Message", "k", `"message"`))

	u, _, err := s.Get("User", "k")
	require.NoError(t, err)
	m, _, err := s.Get("Message", "k")
	require.NoError(t, err)
	assert.Equal(t, `"user"`, u)
	assert.Equal(t, `"message"`, m)

	require.NoError(t, s.Delete("User", "k"))
	_, found, err := s.Get("Message", "k")
	require.NoError(t, err)
	assert.True(t, found)
}

func testScanKeys(t *testing.T, open Factory) {
	s := newStore(t, open)
	want := []string{"a", "b", "c"}
	for _, k := range want {
		require.NoError(t, s.Set("User", k, `{}`))
	}
	require.NoError(t, s.Set("Message", "z", `{}`))
	// A kind whose name extends another must not leak into its scan.
	require.NoError(t, s.Set("Users", "y", `{}`))

	assert.Equal(t, want, collect(t, s, "User"))
	assert.Empty(t, collect(t, s, "Unknown"))
}

func testScanKeysEarlyStop(t *testing.T, open Factory) {
	s := newStore(t, open)
	for i := range 10 {
		require.NoError(t, s.Set("User", fmt.Sprintf("k%02d", i), `{}`))
	}
	n := 0
	for _, err := range s.ScanKeys("User") {
		require.NoError(t, err)
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)

	// The store stays usable after an abandoned scan.
	require.NoError(t, s.Set("User", "after", `{}`))
}

func testScanKeysLarge(t *testing.T, open Factory) {
	s := newStore(t, open)
	var want []string
	for i := range 700 {
		k := fmt.Sprintf("key-%04d", i)
		want = append(want, k)
		require.NoError(t, s.Set("Bulk", k, `{}`))
	}
	assert.Equal(t, want, collect(t, s, "Bulk"))
}

func testScanWhileDeleting(t *testing.T, open Factory) {
	s := newStore(t, open)
	for i := range 20 {
		require.NoError(t, s.Set("User", fmt.Sprintf("k%02d", i), `{}`))
	}
	seen := 0
	for k, err := range s.ScanKeys("User") {
		require.NoError(t, err)
		require.NoError(t, s.Delete("User", k))
		seen++
	}
	assert.Equal(t, 20, seen)
	assert.Empty(t, collect(t, s, "User"))
}

func testListKinds(t *testing.T, open Factory) {
	s := newStore(t, open)
	kinds, err := s.ListKinds()
	require.NoError(t, err)
	assert.Empty(t, kinds)

	require.NoError(t, s.Set("User", "1", `{}`))
	require.NoError(t, s.Set("Message", "1", `{}`))
	require.NoError(t, s.Set("User", "2", `{}`))

	kinds, err = s.ListKinds()
	require.NoError(t, err)
	slices.Sort(kinds)
	assert.Equal(t, []string{"Message", "User"}, kinds)
}

func testAwkwardNames(t *testing.T, open Factory) {
	s := newStore(t, open)
	kind, key := "Odd Kind/ü", "key with spaces\x00and nul"
	require.NoError(t, s.Set(kind, key, `{"ok":true}`))

	payload, found, err := s.Get(kind, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"ok":true}`, payload)
	assert.Equal(t, []string{key}, collect(t, s, kind))
}

func testClose(t *testing.T, open Factory) {
	s := open(t)
	require.NoError(t, s.Set("User", "k", `{}`))
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "second Close should be a no-op")

	err := s.Set("User", "k2", `{}`)
	assert.ErrorIs(t, err, types.ErrDatastoreClosed)
	_, _, err = s.Get("User", "k")
	assert.ErrorIs(t, err, types.ErrDatastoreClosed)
	assert.ErrorIs(t, s.Delete("User", "k"), types.ErrDatastoreClosed)
	_, err = s.ListKinds()
	assert.ErrorIs(t, err, types.ErrDatastoreClosed)
	for _, err := range s.ScanKeys("User") {
		assert.ErrorIs(t, err, types.ErrDatastoreClosed)
	}
}
