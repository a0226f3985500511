package menu

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/user"
)

// Authorizer is the slice of the role resolver the catalog needs.
type Authorizer interface {
	Require(ctx context.Context, identity string, action user.Action, owner string) (user.Role, error)
}

type Catalog struct {
	repo Repository
	auth Authorizer
	log  *slog.Logger
	now  func() time.Time
}

func NewCatalog(repo Repository, auth Authorizer, log *slog.Logger) *Catalog {
	return &Catalog{
		repo: repo,
		auth: auth,
		log:  log.With("component", "menu"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// ListMenu returns the public menu.
func (c *Catalog) ListMenu(ctx context.Context) ([]Section, error) {
	sections, err := c.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if sections == nil {
		sections = []Section{}
	}
	return sections, nil
}

func (c *Catalog) GetItem(ctx context.Context, id string) (*Item, error) {
	return c.repo.GetItem(ctx, id)
}

// IsAvailable reports whether the item exists and can be ordered right now.
// An item in an inactive category is not available.
func (c *Catalog) IsAvailable(ctx context.Context, id string) (bool, error) {
	it, err := c.repo.GetItem(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !it.Available {
		return false, nil
	}
	cat, err := c.repo.GetCategory(ctx, it.CategoryID)
	if err != nil {
		return false, err
	}
	return cat.Active, nil
}

func (c *Catalog) CreateCategory(ctx context.Context, actor string, req CreateCategoryRequest) (*Category, error) {
	if _, err := c.auth.Require(ctx, actor, user.ActionManageMenu, ""); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "name is required")
	}
	now := c.now()
	cat := &Category{
		ID:           uuid.NewString(),
		Name:         name,
		DisplayOrder: req.DisplayOrder,
		Active:       req.Active == nil || *req.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.repo.CreateCategory(ctx, cat); err != nil {
		return nil, err
	}
	c.log.Info("category created", "actor", actor, "category_id", cat.ID, "name", cat.Name)
	return cat, nil
}

func (c *Catalog) UpdateCategory(ctx context.Context, actor, id string, req UpdateCategoryRequest) (*Category, error) {
	if _, err := c.auth.Require(ctx, actor, user.ActionManageMenu, ""); err != nil {
		return nil, err
	}
	cat, err := c.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.New(apperr.ErrInvalidInput, "name must not be empty")
		}
		cat.Name = name
	}
	if req.DisplayOrder != nil {
		cat.DisplayOrder = *req.DisplayOrder
	}
	if req.Active != nil {
		cat.Active = *req.Active
	}
	cat.UpdatedAt = c.now()
	if err := c.repo.UpdateCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (c *Catalog) DeleteCategory(ctx context.Context, actor, id string) error {
	if _, err := c.auth.Require(ctx, actor, user.ActionManageMenu, ""); err != nil {
		return err
	}
	if err := c.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	c.log.Info("category deleted", "actor", actor, "category_id", id)
	return nil
}

func (c *Catalog) CreateItem(ctx context.Context, actor string, req CreateItemRequest) (*Item, error) {
	if _, err := c.auth.Require(ctx, actor, user.ActionManageMenu, ""); err != nil {
		return nil, err
	}
	if req.Price.IsNegative() {
		return nil, apperr.New(apperr.ErrInvalidInput, "price must be >= 0")
	}
	if req.PrepMinutes <= 0 {
		return nil, apperr.New(apperr.ErrInvalidInput, "prep_minutes must be > 0")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "name is required")
	}
	now := c.now()
	it := &Item{
		ID:          uuid.NewString(),
		CategoryID:  req.CategoryID,
		Name:        name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Available:   req.Available == nil || *req.Available,
		Allergens:   normalizeAllergens(req.Allergens),
		PrepMinutes: req.PrepMinutes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.repo.CreateItem(ctx, it); err != nil {
		return nil, err
	}
	c.log.Info("menu item created", "actor", actor, "item_id", it.ID, "name", it.Name)
	return it, nil
}

// UpdateItem changes an item. Existing order lines keep the price they were
// placed with.
func (c *Catalog) UpdateItem(ctx context.Context, actor, id string, req UpdateItemRequest) (*Item, error) {
	if _, err := c.auth.Require(ctx, actor, user.ActionManageMenu, ""); err != nil {
		return nil, err
	}
	it, err := c.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CategoryID != nil {
		it.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.New(apperr.ErrInvalidInput, "name must not be empty")
		}
		it.Name = name
	}
	if req.Description != nil {
		it.Description = *req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, apperr.New(apperr.ErrInvalidInput, "price must be >= 0")
		}
		it.Price = req.Price.Round(2)
	}
	if req.Available != nil {
		it.Available = *req.Available
	}
	if req.Allergens != nil {
		it.Allergens = normalizeAllergens(req.Allergens)
	}
	if req.PrepMinutes != nil {
		it.PrepMinutes = *req.PrepMinutes
	}
	it.UpdatedAt = c.now()
	if err := c.repo.UpdateItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (c *Catalog) DeleteItem(ctx context.Context, actor, id string) error {
	if _, err := c.auth.Require(ctx, actor, user.ActionManageMenu, ""); err != nil {
		return err
	}
	return c.repo.DeleteItem(ctx, id)
}

func normalizeAllergens(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
