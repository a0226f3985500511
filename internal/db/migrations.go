package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Migration is one schema step. The DDL is written in the subset shared by
// Postgres and SQLite.
type Migration struct {
	Version int
	Up      string
}

var AllMigrations = []Migration{
	{Version: 1, Up: schemaV1},
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS profiles (
    id            TEXT PRIMARY KEY,
    role          TEXT NOT NULL DEFAULT 'customer' CHECK (role IN ('customer', 'staff', 'admin')),
    display_name  TEXT NOT NULL,
    email         TEXT NOT NULL DEFAULT '',
    phone         TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS menu_categories (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL UNIQUE,
    display_order  INTEGER NOT NULL DEFAULT 0,
    active         BOOLEAN NOT NULL DEFAULT TRUE,
    created_at     TIMESTAMP NOT NULL,
    updated_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS menu_items (
    id            TEXT PRIMARY KEY,
    category_id   TEXT NOT NULL REFERENCES menu_categories(id) ON DELETE RESTRICT,
    name          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    price         NUMERIC(10,2) NOT NULL CHECK (price >= 0),
    available     BOOLEAN NOT NULL DEFAULT TRUE,
    allergens     TEXT NOT NULL DEFAULT '[]',
    prep_minutes  INTEGER NOT NULL CHECK (prep_minutes > 0),
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS menu_items_category_idx ON menu_items(category_id);

CREATE TABLE IF NOT EXISTS orders (
    id               TEXT PRIMARY KEY,
    owner_id         TEXT NOT NULL REFERENCES profiles(id),
    status           TEXT NOT NULL CHECK (status IN ('placed', 'confirmed', 'preparing', 'ready', 'completed', 'cancelled')),
    total            NUMERIC(10,2) NOT NULL CHECK (total >= 0),
    pickup_code      TEXT NOT NULL CHECK (length(pickup_code) = 4),
    pickup_time      TIMESTAMP NULL,
    notes            TEXT NOT NULL DEFAULT '',
    idempotency_key  TEXT NULL,
    created_at       TIMESTAMP NOT NULL,
    updated_at       TIMESTAMP NOT NULL,
    completed_at     TIMESTAMP NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS orders_active_pickup_code_idx
    ON orders(pickup_code) WHERE status NOT IN ('completed', 'cancelled');
CREATE UNIQUE INDEX IF NOT EXISTS orders_owner_idempotency_idx ON orders(owner_id, idempotency_key);
CREATE INDEX IF NOT EXISTS orders_status_created_idx ON orders(status, created_at);
CREATE INDEX IF NOT EXISTS orders_owner_created_idx ON orders(owner_id, created_at);

CREATE TABLE IF NOT EXISTS order_items (
    id            TEXT PRIMARY KEY,
    order_id      TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    line_no       INTEGER NOT NULL,
    menu_item_id  TEXT NOT NULL REFERENCES menu_items(id),
    name          TEXT NOT NULL,
    quantity      INTEGER NOT NULL CHECK (quantity >= 1),
    unit_price    NUMERIC(10,2) NOT NULL CHECK (unit_price >= 0),
    instructions  TEXT NOT NULL DEFAULT '',
    UNIQUE (order_id, line_no)
);

CREATE TABLE IF NOT EXISTS order_status_history (
    id               TEXT PRIMARY KEY,
    order_id         TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    previous_status  TEXT NULL,
    new_status       TEXT NOT NULL,
    actor_id         TEXT NULL,
    note             TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS order_status_history_order_idx ON order_status_history(order_id, created_at);

CREATE TABLE IF NOT EXISTS payments (
    id            TEXT PRIMARY KEY,
    order_id      TEXT NOT NULL UNIQUE REFERENCES orders(id) ON DELETE RESTRICT,
    amount        NUMERIC(10,2) NOT NULL CHECK (amount >= 0),
    method        TEXT NOT NULL CHECK (method IN ('cash', 'card', 'mobile_wallet', 'meal_plan')),
    provider_ref  TEXT NULL UNIQUE,
    status        TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed', 'refunded')),
    processed_at  TIMESTAMP NULL,
    created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
    id        TEXT PRIMARY KEY,
    user_id   TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    order_id  TEXT NULL REFERENCES orders(id),
    type      TEXT NOT NULL CHECK (type IN ('order_placed', 'order_ready', 'order_cancelled', 'system')),
    title     TEXT NOT NULL,
    message   TEXT NOT NULL,
    sent_at   TIMESTAMP NOT NULL,
    read_at   TIMESTAMP NULL
);

CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications(user_id, sent_at);

CREATE TABLE IF NOT EXISTS push_tokens (
    token       TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    platform    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS push_tokens_user_idx ON push_tokens(user_id);

CREATE TABLE IF NOT EXISTS settings (
    id                     INTEGER PRIMARY KEY CHECK (id = 1),
    max_active_orders      INTEGER NOT NULL CHECK (max_active_orders > 0),
    open_time              TEXT NOT NULL DEFAULT '',
    close_time             TEXT NOT NULL DEFAULT '',
    accepting_orders       BOOLEAN NOT NULL DEFAULT TRUE,
    cancel_from_preparing  BOOLEAN NOT NULL DEFAULT FALSE,
    updated_by             TEXT NULL,
    updated_at             TIMESTAMP NOT NULL
);
`

func (d *DB) migrate(ctx context.Context) error {
	q := d.Q()
	if _, err := q.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
		    version     INTEGER PRIMARY KEY,
		    applied_at  TIMESTAMP NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range AllMigrations {
		var v int
		err := q.QueryRowContext(ctx, `SELECT version FROM schema_migrations WHERE version = ?`, m.Version).Scan(&v)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read schema_migrations: %w", err)
		}

		err = d.InTx(ctx, func(ctx context.Context, tx Querier) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				m.Version, time.Now().UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
		d.log.Info("applied migration", "version", m.Version)
	}
	return nil
}
