package menu

import "github.com/shopspring/decimal"

// CreateCategoryRequest payload of category creation.
type CreateCategoryRequest struct {
	Name         string `json:"name" validate:"required,max=80"`
	DisplayOrder int    `json:"display_order" validate:"min=0"`
	Active       *bool  `json:"active"`
}

// UpdateCategoryRequest is a partial update; nil fields are left unchanged.
type UpdateCategoryRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=80"`
	DisplayOrder *int    `json:"display_order" validate:"omitempty,min=0"`
	Active       *bool   `json:"active"`
}

// CreateItemRequest payload of item creation.
type CreateItemRequest struct {
	CategoryID  string          `json:"category_id" validate:"required"`
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Available   *bool           `json:"available"`
	Allergens   []string        `json:"allergens" validate:"dive,required"`
	PrepMinutes int             `json:"prep_minutes" validate:"required,min=1"`
}

// UpdateItemRequest is a partial update; nil fields are left unchanged.
type UpdateItemRequest struct {
	CategoryID  *string          `json:"category_id"`
	Name        *string          `json:"name" validate:"omitempty,max=120"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
	Price       *decimal.Decimal `json:"price"`
	Available   *bool            `json:"available"`
	Allergens   []string         `json:"allergens" validate:"omitempty,dive,required"`
	PrepMinutes *int             `json:"prep_minutes" validate:"omitempty,min=1"`
}
