package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/cafeteria/internal/logging"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:"}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestRebind(t *testing.T) {
	q := `UPDATE orders SET status = ? WHERE id = ? AND status = ?`
	assert.Equal(t, `UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`, Rebind(DriverPostgres, q))
	assert.Equal(t, q, Rebind(DriverSQLite, q))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
	assert.Equal(t, "", Placeholders(0))
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.migrate(ctx))

	var n int
	require.NoError(t, d.Q().QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(AllMigrations), n)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	boom := errors.New("boom")
	err := d.InTx(ctx, func(ctx context.Context, q Querier) error {
		if _, err := q.ExecContext(ctx, `INSERT INTO profiles (id, display_name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			"u1", "Ana", now, now); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, d.Q().QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestConstraintClassification(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	q := d.Q()

	_, err := q.ExecContext(ctx, `INSERT INTO menu_categories (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`, "c1", "Mains", now, now)
	require.NoError(t, err)

	_, err = q.ExecContext(ctx, `INSERT INTO menu_categories (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`, "c2", "Mains", now, now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsForeignKeyViolation(err))
	assert.True(t, IsUniqueViolationOn(err, "menu_categories", "name"))
	assert.False(t, IsUniqueViolationOn(err, "menu_categories", "id"))

	_, err = q.ExecContext(ctx, `INSERT INTO menu_items (id, category_id, name, price, prep_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, "i1", "missing", "Soup", "4.00", 5, now, now)
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))
	assert.False(t, IsUniqueViolation(err))
}

func TestIsUniqueViolationOn_PostgresConstraintName(t *testing.T) {
	err := fmt.Errorf("insert payment: %w", &pgconn.PgError{Code: "23505", ConstraintName: "payments_order_id_key"})
	assert.True(t, IsUniqueViolationOn(err, "payments", "order_id"))
	assert.False(t, IsUniqueViolationOn(err, "payments", "provider_ref"))
	assert.False(t, IsUniqueViolationOn(&pgconn.PgError{Code: "23503", ConstraintName: "payments_order_id_key"}, "payments", "order_id"))
}

func TestOpen_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	d, err := Open(context.Background(), Config{Driver: DriverPostgres, DSN: dsn}, logging.Discard())
	require.NoError(t, err)
	defer d.Close()
	assert.NoError(t, d.Ping(context.Background()))
}
