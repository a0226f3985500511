// Package notify keeps user notifications and delivers them to devices.
package notify

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/db"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, ids []string, at time.Time) (int64, error)

	RegisterToken(ctx context.Context, t *DeviceToken) error
	Tokens(ctx context.Context, userID string) ([]DeviceToken, error)
	DeleteToken(ctx context.Context, token string) error
}

// Insert writes n through q, which may be an open transaction.
func Insert(ctx context.Context, q db.Querier, n *Notification) error {
	var orderID any
	if n.OrderID != "" {
		orderID = n.OrderID
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, order_id, type, title, message, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, orderID, string(n.Type), n.Title, n.Message, n.SentAt)
	return err
}

type SQLRepo struct{ db *db.DB }

func NewSQLRepo(d *db.DB) *SQLRepo { return &SQLRepo{db: d} }

func (r *SQLRepo) Insert(ctx context.Context, n *Notification) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()
	if err := Insert(ctx, r.db.Q(), n); err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperr.New(apperr.ErrNotFound, "recipient or order not found")
		}
		return apperr.FromStore(err)
	}
	return nil
}

// List returns the newest notifications first.
func (r *SQLRepo) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, order_id, type, title, message, sent_at, read_at
		FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY sent_at DESC, id LIMIT ?`

	rows, err := r.db.Q().QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var (
			n       Notification
			orderID sql.NullString
			readAt  sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &orderID, &n.Type, &n.Title, &n.Message, &n.SentAt, &readAt); err != nil {
			return nil, apperr.FromStore(err)
		}
		n.OrderID = orderID.String
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore(err)
	}
	return out, nil
}

func (r *SQLRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var n int
	err := r.db.Q().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL
	`, userID).Scan(&n)
	return n, apperr.FromStore(err)
}

// MarkRead stamps read_at on unread rows only, so repeating it affects nothing.
func (r *SQLRepo) MarkRead(ctx context.Context, userID string, ids []string, at time.Time) (int64, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	query := `UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL`
	args := []any{at, userID}
	if len(ids) > 0 {
		query += ` AND id IN (` + db.Placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := r.db.Q().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperr.FromStore(err)
	}
	n, err := res.RowsAffected()
	return n, apperr.FromStore(err)
}

// RegisterToken stores the token, moving it to userID if another user held it.
func (r *SQLRepo) RegisterToken(ctx context.Context, t *DeviceToken) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.Q().ExecContext(ctx, `
		INSERT INTO push_tokens (token, user_id, platform, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET user_id = excluded.user_id, platform = excluded.platform
	`, t.Token, t.UserID, strings.ToLower(t.Platform), t.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.New(apperr.ErrNotFound, "profile not found")
	}
	return apperr.FromStore(err)
}

func (r *SQLRepo) Tokens(ctx context.Context, userID string) ([]DeviceToken, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	rows, err := r.db.Q().QueryContext(ctx, `
		SELECT token, user_id, platform, created_at FROM push_tokens WHERE user_id = ? ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	defer rows.Close()

	var out []DeviceToken
	for rows.Next() {
		var t DeviceToken
		if err := rows.Scan(&t.Token, &t.UserID, &t.Platform, &t.CreatedAt); err != nil {
			return nil, apperr.FromStore(err)
		}
		out = append(out, t)
	}
	return out, apperr.FromStore(rows.Err())
}

func (r *SQLRepo) DeleteToken(ctx context.Context, token string) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.Q().ExecContext(ctx, `DELETE FROM push_tokens WHERE token = ?`, token)
	return apperr.FromStore(err)
}
