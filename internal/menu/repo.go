// Package menu is the read-mostly catalog of categories and items.
package menu

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/db"
)

var (
	ErrCategoryNotFound = apperr.New(apperr.ErrNotFound, "category not found")
	ErrItemNotFound     = apperr.New(apperr.ErrNotFound, "menu item not found")
)

type Repository interface {
	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id string) error

	CreateItem(ctx context.Context, it *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, id string) error

	ListActive(ctx context.Context) ([]Section, error)
}

type SQLRepo struct{ db *db.DB }

func NewSQLRepo(d *db.DB) *SQLRepo { return &SQLRepo{db: d} }

func (r *SQLRepo) CreateCategory(ctx context.Context, c *Category) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.Q().ExecContext(ctx, `
		INSERT INTO menu_categories (id, name, display_order, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.DisplayOrder, c.Active, c.CreatedAt, c.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.New(apperr.ErrConflict, "category %q already exists", c.Name)
	}
	return apperr.FromStore(err)
}

func (r *SQLRepo) GetCategory(ctx context.Context, id string) (*Category, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var c Category
	err := r.db.Q().QueryRowContext(ctx, `
		SELECT id, name, display_order, active, created_at, updated_at
		FROM menu_categories WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.DisplayOrder, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return &c, nil
}

func (r *SQLRepo) UpdateCategory(ctx context.Context, c *Category) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.Q().ExecContext(ctx, `
		UPDATE menu_categories
		SET name = ?, display_order = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.DisplayOrder, c.Active, c.UpdatedAt, c.ID)
	if db.IsUniqueViolation(err) {
		return apperr.New(apperr.ErrConflict, "category %q already exists", c.Name)
	}
	return affectedOne(res, err, ErrCategoryNotFound)
}

// DeleteCategory refuses while any item still belongs to the category.
func (r *SQLRepo) DeleteCategory(ctx context.Context, id string) error {
	err := r.db.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		var n int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM menu_items WHERE category_id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return apperr.New(apperr.ErrConflict, "category still has %d item(s)", n)
		}
		res, err := q.ExecContext(ctx, `DELETE FROM menu_categories WHERE id = ?`, id)
		return affectedOne(res, err, ErrCategoryNotFound)
	})
	if db.IsForeignKeyViolation(err) {
		return apperr.New(apperr.ErrConflict, "category still has items")
	}
	return apperr.FromStore(err)
}

func (r *SQLRepo) CreateItem(ctx context.Context, it *Item) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	allergens, err := encodeAllergens(it.Allergens)
	if err != nil {
		return err
	}
	_, err = r.db.Q().ExecContext(ctx, `
		INSERT INTO menu_items (id, category_id, name, description, price, available, allergens, prep_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.CategoryID, it.Name, it.Description, it.Price, it.Available, allergens, it.PrepMinutes, it.CreatedAt, it.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return ErrCategoryNotFound
	}
	return apperr.FromStore(err)
}

func (r *SQLRepo) GetItem(ctx context.Context, id string) (*Item, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	row := r.db.Q().QueryRowContext(ctx, `
		SELECT id, category_id, name, description, price, available, allergens, prep_minutes, created_at, updated_at
		FROM menu_items WHERE id = ?
	`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return it, nil
}

func (r *SQLRepo) UpdateItem(ctx context.Context, it *Item) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	allergens, err := encodeAllergens(it.Allergens)
	if err != nil {
		return err
	}
	res, err := r.db.Q().ExecContext(ctx, `
		UPDATE menu_items
		SET category_id = ?, name = ?, description = ?, price = ?, available = ?,
		    allergens = ?, prep_minutes = ?, updated_at = ?
		WHERE id = ?
	`, it.CategoryID, it.Name, it.Description, it.Price, it.Available, allergens, it.PrepMinutes, it.UpdatedAt, it.ID)
	if db.IsForeignKeyViolation(err) {
		return ErrCategoryNotFound
	}
	return affectedOne(res, err, ErrItemNotFound)
}

// DeleteItem fails with Conflict once the item appears on any order; such
// items are retired by marking them unavailable.
func (r *SQLRepo) DeleteItem(ctx context.Context, id string) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.Q().ExecContext(ctx, `DELETE FROM menu_items WHERE id = ?`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.New(apperr.ErrConflict, "menu item is referenced by orders; mark it unavailable instead")
	}
	return affectedOne(res, err, ErrItemNotFound)
}

// ListActive returns active categories in display order, each with its
// available items sorted by name. Categories without available items are omitted.
func (r *SQLRepo) ListActive(ctx context.Context) ([]Section, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	rows, err := r.db.Q().QueryContext(ctx, `
		SELECT c.id, c.name, c.display_order, c.active, c.created_at, c.updated_at,
		       i.id, i.category_id, i.name, i.description, i.price, i.available, i.allergens, i.prep_minutes, i.created_at, i.updated_at
		FROM menu_categories c
		JOIN menu_items i ON i.category_id = c.id
		WHERE c.active = TRUE AND i.available = TRUE
		ORDER BY c.display_order, c.name, i.name
	`)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	defer rows.Close()

	var out []Section
	for rows.Next() {
		var (
			c         Category
			it        Item
			allergens string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.DisplayOrder, &c.Active, &c.CreatedAt, &c.UpdatedAt,
			&it.ID, &it.CategoryID, &it.Name, &it.Description, &it.Price, &it.Available, &allergens,
			&it.PrepMinutes, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, apperr.FromStore(err)
		}
		if it.Allergens, err = decodeAllergens(allergens); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].Category.ID != c.ID {
			out = append(out, Section{Category: c})
		}
		out[len(out)-1].Items = append(out[len(out)-1].Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore(err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*Item, error) {
	var (
		it        Item
		allergens string
	)
	if err := s.Scan(&it.ID, &it.CategoryID, &it.Name, &it.Description, &it.Price, &it.Available,
		&allergens, &it.PrepMinutes, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if it.Allergens, err = decodeAllergens(allergens); err != nil {
		return nil, err
	}
	return &it, nil
}

func encodeAllergens(a []string) (string, error) {
	if a == nil {
		a = []string{}
	}
	b, err := json.Marshal(a)
	return string(b), err
}

func decodeAllergens(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(s), &out)
	return out, err
}

func affectedOne(res sql.Result, err error, notFound error) error {
	if err != nil {
		return apperr.FromStore(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.FromStore(err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
