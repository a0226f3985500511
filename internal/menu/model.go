package menu

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Item struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"category_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Available   bool            `json:"available"`
	Allergens   []string        `json:"allergens"`
	PrepMinutes int             `json:"prep_minutes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Section is one category of the public menu with its available items.
type Section struct {
	Category Category `json:"category"`
	Items    []Item   `json:"items"`
}
