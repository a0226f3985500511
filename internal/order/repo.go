package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/db"
	"github.com/MikeMC777/cafeteria/internal/notify"
)

var (
	ErrNotFound      = apperr.New(apperr.ErrNotFound, "order not found")
	ErrStatusChanged = apperr.New(apperr.ErrConflict, "order status changed concurrently; reload and retry")

	// errDuplicate reports a unique violation on insert: either the pickup
	// code is held by another active order or the idempotency key was used.
	errDuplicate = errors.New("duplicate pickup code or idempotency key")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Transition is a conditional status change: it applies only while the
// order is still in From.
type Transition struct {
	OrderID string
	From    Status
	To      Status
	ActorID string
	Note    string
	At      time.Time
	// Notices are written in the same transaction.
	Notices []notify.Notification
}

type Repository interface {
	Create(ctx context.Context, o *Order, notices []notify.Notification) error
	CodeInUse(ctx context.Context, code string) (bool, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*Order, error)
	Transition(ctx context.Context, t Transition) error
	ListQueue(ctx context.Context, statuses []Status) ([]Order, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Order, error)
	FindReadyByCode(ctx context.Context, code string) (*Order, error)
	CountActive(ctx context.Context) (int, error)
}

type SQLRepo struct{ db *db.DB }

func NewSQLRepo(d *db.DB) *SQLRepo { return &SQLRepo{db: d} }

const orderColumns = `id, owner_id, status, total, pickup_code, pickup_time, notes, idempotency_key, created_at, updated_at, completed_at`

var terminalSQL = fmt.Sprintf("('%s', '%s')", StatusCompleted, StatusCancelled)

// Create writes the header, its lines, the creation history entry and the
// given notices in one transaction.
func (r *SQLRepo) Create(ctx context.Context, o *Order, notices []notify.Notification) error {
	err := r.db.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, o.ID, o.OwnerID, string(o.Status), o.Total, o.PickupCode, nullTime(o.PickupTime), o.Notes,
			nullString(o.IdempotencyKey), o.CreatedAt, o.UpdatedAt, nullTime(o.CompletedAt)); err != nil {
			return err
		}
		for _, it := range o.Items {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, line_no, menu_item_id, name, quantity, unit_price, instructions)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, it.ID, o.ID, it.LineNo, it.MenuItemID, it.Name, it.Quantity, it.UnitPrice, it.Instructions); err != nil {
				return err
			}
		}
		for _, h := range o.History {
			if err := insertHistory(ctx, q, h); err != nil {
				return err
			}
		}
		for i := range notices {
			if err := notify.Insert(ctx, q, &notices[i]); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case db.IsUniqueViolation(err):
		return errDuplicate
	case db.IsForeignKeyViolation(err):
		return apperr.New(apperr.ErrInvalidItem, "a referenced menu item no longer exists")
	}
	return apperr.FromStore(err)
}

func (r *SQLRepo) CodeInUse(ctx context.Context, code string) (bool, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var n int
	err := r.db.Q().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE pickup_code = ? AND status NOT IN `+terminalSQL,
		code).Scan(&n)
	if err != nil {
		return false, apperr.FromStore(err)
	}
	return n > 0, nil
}

func (r *SQLRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	q := r.db.Q()
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if err := loadItems(ctx, q, []*Order{o}); err != nil {
		return nil, apperr.FromStore(err)
	}
	if o.History, err = loadHistory(ctx, q, o.ID); err != nil {
		return nil, apperr.FromStore(err)
	}
	return o, nil
}

func (r *SQLRepo) FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*Order, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var id string
	err := r.db.Q().QueryRowContext(ctx, `
		SELECT id FROM orders WHERE owner_id = ? AND idempotency_key = ?
	`, ownerID, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return r.GetByID(ctx, id)
}

// Transition applies t as a compare-and-swap on the current status. When the
// order is no longer in t.From nothing is written and ErrStatusChanged is
// returned.
func (r *SQLRepo) Transition(ctx context.Context, t Transition) error {
	err := r.db.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		query := `UPDATE orders SET status = ?, updated_at = ?`
		args := []any{string(t.To), t.At}
		if t.To == StatusCompleted {
			query += `, completed_at = ?`
			args = append(args, t.At)
		}
		query += ` WHERE id = ? AND status = ?`
		args = append(args, t.OrderID, string(t.From))

		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var cur string
			err := q.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, t.OrderID).Scan(&cur)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			return ErrStatusChanged
		}

		if err := insertHistory(ctx, q, HistoryEntry{
			ID:             newID(),
			OrderID:        t.OrderID,
			PreviousStatus: t.From,
			NewStatus:      t.To,
			ActorID:        t.ActorID,
			Note:           t.Note,
			CreatedAt:      t.At,
		}); err != nil {
			return err
		}
		for i := range t.Notices {
			if err := notify.Insert(ctx, q, &t.Notices[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return apperr.FromStore(err)
}

// ListQueue returns orders in the given statuses, grouped by status
// priority and oldest first within a status.
func (r *SQLRepo) ListQueue(ctx context.Context, statuses []Status) ([]Order, error) {
	if len(statuses) == 0 {
		return []Order{}, nil
	}
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var priority strings.Builder
	priority.WriteString("CASE status")
	for _, s := range ActiveStatuses {
		fmt.Fprintf(&priority, " WHEN '%s' THEN %d", s, queuePriority(s))
	}
	fmt.Fprintf(&priority, " ELSE %d END", queuePriority(""))

	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
	}
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status IN (`+db.Placeholders(len(statuses))+`)
		ORDER BY `+priority.String()+`, created_at, id
	`, args...)
}

// ListByOwner pages through an owner's orders, newest first.
func (r *SQLRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE owner_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, ownerID, limit, offset)
}

func (r *SQLRepo) FindReadyByCode(ctx context.Context, code string) (*Order, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	q := r.db.Q()
	o, err := scanOrder(q.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE pickup_code = ? AND status = ?
	`, code, string(StatusReady)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if err := loadItems(ctx, q, []*Order{o}); err != nil {
		return nil, apperr.FromStore(err)
	}
	return o, nil
}

func (r *SQLRepo) CountActive(ctx context.Context) (int, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var n int
	err := r.db.Q().QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE status NOT IN `+terminalSQL).Scan(&n)
	if err != nil {
		return 0, apperr.FromStore(err)
	}
	return n, nil
}

func (r *SQLRepo) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	q := r.db.Q()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, apperr.FromStore(err)
		}
		out = append(out, o)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	// rows must be closed first: the SQLite pool has a single connection
	if err := loadItems(ctx, q, out); err != nil {
		return nil, apperr.FromStore(err)
	}

	orders := make([]Order, 0, len(out))
	for _, o := range out {
		orders = append(orders, *o)
	}
	return orders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*Order, error) {
	var (
		o           Order
		pickupTime  sql.NullTime
		idemKey     sql.NullString
		completedAt sql.NullTime
	)
	if err := s.Scan(&o.ID, &o.OwnerID, &o.Status, &o.Total, &o.PickupCode, &pickupTime, &o.Notes,
		&idemKey, &o.CreatedAt, &o.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	o.PickupTime = timePtr(pickupTime)
	o.CompletedAt = timePtr(completedAt)
	o.IdempotencyKey = idemKey.String
	return &o, nil
}

func loadItems(ctx context.Context, q db.Querier, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*Order, len(orders))
	args := make([]any, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		args = append(args, o.ID)
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, line_no, menu_item_id, name, quantity, unit_price, instructions
		FROM order_items WHERE order_id IN (`+db.Placeholders(len(args))+`)
		ORDER BY order_id, line_no
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.LineNo, &it.MenuItemID, &it.Name, &it.Quantity,
			&it.UnitPrice, &it.Instructions); err != nil {
			return err
		}
		if o := byID[it.OrderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func loadHistory(ctx context.Context, q db.Querier, orderID string) ([]HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, previous_status, new_status, actor_id, note, created_at
		FROM order_status_history WHERE order_id = ?
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			h        HistoryEntry
			previous sql.NullString
			actor    sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.OrderID, &previous, &h.NewStatus, &actor, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.PreviousStatus = Status(previous.String)
		h.ActorID = actor.String
		out = append(out, h)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, q db.Querier, h HistoryEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, previous_status, new_status, actor_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, h.ID, h.OrderID, nullString(string(h.PreviousStatus)), string(h.NewStatus), nullString(h.ActorID), h.Note, h.CreatedAt)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
