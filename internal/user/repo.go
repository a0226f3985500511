package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/db"
)

var ErrNotFound = apperr.New(apperr.ErrNotFound, "profile not found")

type Repository interface {
	Create(ctx context.Context, p *Profile) (bool, error)
	GetByID(ctx context.Context, id string) (*Profile, error)
	UpdateRole(ctx context.Context, id string, role Role, at time.Time) (bool, error)
}

type SQLRepo struct{ db *db.DB }

func NewSQLRepo(d *db.DB) *SQLRepo { return &SQLRepo{db: d} }

// Create inserts the profile unless one already exists for the id.
func (r *SQLRepo) Create(ctx context.Context, p *Profile) (bool, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.Q().ExecContext(ctx, `
		INSERT INTO profiles (id, role, display_name, email, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, string(p.Role), p.DisplayName, p.Email, p.Phone, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, apperr.FromStore(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.FromStore(err)
	}
	return n > 0, nil
}

func (r *SQLRepo) GetByID(ctx context.Context, id string) (*Profile, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var p Profile
	err := r.db.Q().QueryRowContext(ctx, `
		SELECT id, role, display_name, email, phone, created_at, updated_at
		FROM profiles WHERE id = ?
	`, id).Scan(&p.ID, &p.Role, &p.DisplayName, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return &p, nil
}

func (r *SQLRepo) UpdateRole(ctx context.Context, id string, role Role, at time.Time) (bool, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.Q().ExecContext(ctx, `
		UPDATE profiles SET role = ?, updated_at = ? WHERE id = ?
	`, string(role), at, id)
	if err != nil {
		return false, apperr.FromStore(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.FromStore(err)
	}
	return n > 0, nil
}
