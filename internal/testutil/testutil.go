// Package testutil opens throwaway stores for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/cafeteria/internal/db"
	"github.com/MikeMC777/cafeteria/internal/logging"
)

// OpenDB returns a migrated in-memory SQLite store closed at test end.
func OpenDB(t testing.TB) *db.DB {
	t.Helper()
	d, err := db.Open(context.Background(), db.Config{Driver: db.DriverSQLite, DSN: ":memory:"}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// InsertProfile writes a profile row directly.
func InsertProfile(t testing.TB, d *db.DB, id, role string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := d.Q().ExecContext(context.Background(), `
		INSERT INTO profiles (id, role, display_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`, id, role, id, now, now)
	require.NoError(t, err)
}

// Clock returns a deterministic, strictly increasing clock.
func Clock(start time.Time, step time.Duration) func() time.Time {
	cur := start.Add(-step)
	return func() time.Time {
		cur = cur.Add(step)
		return cur
	}
}
