package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/db"
)

var (
	ErrNotFound      = apperr.New(apperr.ErrNotFound, "payment not found")
	ErrAlreadyPaid   = apperr.New(apperr.ErrConflict, "order already has a payment")
	ErrDuplicateRef  = apperr.New(apperr.ErrConflict, "provider reference already recorded")
	ErrStatusChanged = apperr.New(apperr.ErrConflict, "payment status changed concurrently; reload and retry")
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	GetByOrder(ctx context.Context, orderID string) (*Payment, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, processedAt *time.Time) error
}

type SQLRepo struct{ db *db.DB }

func NewSQLRepo(d *db.DB) *SQLRepo { return &SQLRepo{db: d} }

const paymentColumns = `id, order_id, amount, method, provider_ref, status, processed_at, created_at`

func (r *SQLRepo) Create(ctx context.Context, p *Payment) error {
	err := r.db.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		var n int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE order_id = ?`, p.OrderID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyPaid
		}
		var ref any
		if p.ProviderRef != "" {
			ref = p.ProviderRef
		}
		var processed any
		if p.ProcessedAt != nil {
			processed = *p.ProcessedAt
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO payments (`+paymentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.OrderID, p.Amount, string(p.Method), ref, string(p.Status), processed, p.CreatedAt)
		return err
	})
	return createError(err)
}

// createError maps constraint failures on insert. The order_id constraint
// also catches two payments for one order racing past the pre-check.
func createError(err error) error {
	switch {
	case db.IsUniqueViolationOn(err, "payments", "order_id"):
		return ErrAlreadyPaid
	case db.IsUniqueViolationOn(err, "payments", "provider_ref"):
		return ErrDuplicateRef
	case db.IsForeignKeyViolation(err):
		return apperr.New(apperr.ErrNotFound, "order not found")
	}
	return apperr.FromStore(err)
}

func (r *SQLRepo) GetByID(ctx context.Context, id string) (*Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
}

func (r *SQLRepo) GetByOrder(ctx context.Context, orderID string) (*Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = ?`, orderID)
}

func (r *SQLRepo) get(ctx context.Context, query string, arg string) (*Payment, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var (
		p         Payment
		ref       sql.NullString
		processed sql.NullTime
	)
	err := r.db.Q().QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &ref,
		&p.Status, &processed, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	p.ProviderRef = ref.String
	if processed.Valid {
		t := processed.Time
		p.ProcessedAt = &t
	}
	return &p, nil
}

// UpdateStatus changes the status only while it is still from.
func (r *SQLRepo) UpdateStatus(ctx context.Context, id string, from, to Status, processedAt *time.Time) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var processed any
	if processedAt != nil {
		processed = *processedAt
	}
	res, err := r.db.Q().ExecContext(ctx, `
		UPDATE payments SET status = ?, processed_at = COALESCE(?, processed_at)
		WHERE id = ? AND status = ?
	`, string(to), processed, id, string(from))
	if err != nil {
		return apperr.FromStore(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.FromStore(err)
	}
	if n == 0 {
		return ErrStatusChanged
	}
	return nil
}
