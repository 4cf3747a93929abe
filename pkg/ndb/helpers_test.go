package ndb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/ndb/internal/memory"
)

// openMemory opens a DB over a fresh in-memory store and closes it when the
// test ends. Tests in this package must not run in parallel: only one DB
// may be open at a time.
func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(memory.NewBackend(), WithName("memory"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// freezeClock pins the timestamp clock to now for the rest of the test.
func freezeClock(t *testing.T, now time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = prev })
}

// userModel mirrors a typical account record.
func userModel() *Model {
	return NewModel("User",
		String("name", Required()),
		Integer("age"),
		Float("score", Default(0.0)),
		Boolean("active", Default(true)),
		String("role", Choices("admin", "member"), Default("member")),
		Timestamp("created", AutoNowAdd()),
		Timestamp("updated", AutoNow()),
	)
}
