// Package db opens the relational store and provides the shared helpers the
// repositories use: placeholder rebinding, transactions, per-call timeouts and
// constraint-violation classification.
//
// Two drivers are supported. "pgx" (Postgres through pgx's database/sql
// adapter) is the production store; "sqlite" (modernc, pure Go) serves local
// development and the test suites. Queries are written with "?" placeholders
// and rebound for Postgres.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"

	DefaultTimeout         = 5 * time.Second
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 5 * time.Minute
)

type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	Timeout      time.Duration
}

// Querier is implemented by both the pool and an open transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DB struct {
	sql     *sql.DB
	driver  string
	timeout time.Duration
	log     *slog.Logger
}

// Open connects, verifies the connection and applies pending migrations.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*DB, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	log = log.With("component", "db")

	var (
		conn *sql.DB
		err  error
	)
	switch cfg.Driver {
	case DriverPostgres:
		conn, err = openPostgres(cfg)
	case DriverSQLite:
		conn, err = openSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	d := &DB{sql: conn, driver: cfg.Driver, timeout: cfg.Timeout, log: log}
	if err := d.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := d.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("database ready", "driver", cfg.Driver)
	return d, nil
}

func openPostgres(cfg Config) (*sql.DB, error) {
	conn, err := sql.Open(DriverPostgres, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(DefaultMaxIdleConns)
	conn.SetConnMaxLifetime(DefaultConnMaxLifetime)
	return conn, nil
}

func openSQLite(cfg Config) (*sql.DB, error) {
	conn, err := sql.Open(DriverSQLite, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; also keeps ":memory:" databases alive on one connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	// lock waits give up with the store timeout
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.Timeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return conn, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) Driver() string { return d.driver }

func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.WithTimeout(ctx)
	defer cancel()
	return d.sql.PingContext(ctx)
}

// WithTimeout bounds a single store call.
func (d *DB) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.timeout)
}

// Q returns a querier over the pool.
func (d *DB) Q() Querier { return &rebinder{q: d.sql, driver: d.driver} }

// InTx runs fn inside one transaction bounded by the store timeout. fn must
// issue its statements with the ctx it is handed, which carries that
// deadline. The transaction commits only when fn returns nil.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	ctx, cancel := d.WithTimeout(ctx)
	defer cancel()

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &rebinder{q: tx, driver: d.driver}); err != nil {
		return err
	}
	return tx.Commit()
}

type rebinder struct {
	q      Querier
	driver string
}

func (r *rebinder) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, Rebind(r.driver, query), args...)
}

func (r *rebinder) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, Rebind(r.driver, query), args...)
}

func (r *rebinder) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, Rebind(r.driver, query), args...)
}

// Rebind rewrites "?" placeholders to "$n" for Postgres.
func Rebind(driver, query string) string {
	if driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Placeholders returns "?, ?, ..." for n arguments.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// IsUniqueViolation reports a unique or primary-key constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			(strings.Contains(se.Error(), "UNIQUE") || strings.Contains(se.Error(), "PRIMARY KEY"))
	}
	return false
}

// IsUniqueViolationOn reports a unique violation of the single-column
// constraint on table.column. Postgres constraints are matched by their
// default name, <table>_<column>_key.
func IsUniqueViolationOn(err error, table, column string) bool {
	if !IsUniqueViolation(err) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName == table+"_"+column+"_key"
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return strings.Contains(se.Error(), table+"."+column)
	}
	return false
}

// IsForeignKeyViolation reports a foreign-key constraint failure.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY")
	}
	return false
}
