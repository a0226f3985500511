package settings

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/db"
)

type Repository interface {
	// Get returns nil, nil when no settings have been stored yet.
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}

type SQLRepo struct{ db *db.DB }

func NewSQLRepo(d *db.DB) *SQLRepo { return &SQLRepo{db: d} }

func (r *SQLRepo) Get(ctx context.Context) (*Settings, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var (
		s         Settings
		updatedBy sql.NullString
	)
	err := r.db.Q().QueryRowContext(ctx, `
		SELECT max_active_orders, open_time, close_time, accepting_orders, cancel_from_preparing, updated_by, updated_at
		FROM settings WHERE id = 1
	`).Scan(&s.MaxActiveOrders, &s.OpenTime, &s.CloseTime, &s.AcceptingOrders, &s.CancelFromPreparing, &updatedBy, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	s.UpdatedBy = updatedBy.String
	return &s, nil
}

func (r *SQLRepo) Save(ctx context.Context, s *Settings) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var updatedBy any
	if s.UpdatedBy != "" {
		updatedBy = s.UpdatedBy
	}
	_, err := r.db.Q().ExecContext(ctx, `
		INSERT INTO settings (id, max_active_orders, open_time, close_time, accepting_orders, cancel_from_preparing, updated_by, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		    max_active_orders = excluded.max_active_orders,
		    open_time = excluded.open_time,
		    close_time = excluded.close_time,
		    accepting_orders = excluded.accepting_orders,
		    cancel_from_preparing = excluded.cancel_from_preparing,
		    updated_by = excluded.updated_by,
		    updated_at = excluded.updated_at
	`, s.MaxActiveOrders, s.OpenTime, s.CloseTime, s.AcceptingOrders, s.CancelFromPreparing, updatedBy, s.UpdatedAt)
	return apperr.FromStore(err)
}
