package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderItem is one requested line.
type CreateOrderItem struct {
	MenuItemID   string `json:"menu_item_id" validate:"required" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity     int    `json:"quantity" validate:"required,min=1,max=50" example:"2"`
	Instructions string `json:"instructions" validate:"max=500" example:"no onions"`
}

// CreateOrderRequest is the payload of order placement. Total is what the
// client displayed; it is compared with the computed total but never stored.
type CreateOrderRequest struct {
	Items      []CreateOrderItem `json:"items" validate:"required,min=1,max=30,dive"`
	Notes      string            `json:"notes" validate:"max=1000"`
	PickupTime *time.Time        `json:"pickup_time"`
	Total      *decimal.Decimal  `json:"total"`
}

// TransitionRequest moves an order to Status.
type TransitionRequest struct {
	Status Status `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// PickupSummary is what the counter sees after a successful verification.
type PickupSummary struct {
	OrderID    string          `json:"order_id"`
	PickupCode string          `json:"pickup_code"`
	Status     Status          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Items      []SummaryLine   `json:"items"`
	Notes      string          `json:"notes,omitempty"`
}

type SummaryLine struct {
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Instructions string `json:"instructions,omitempty"`
}

func Summarize(o *Order) PickupSummary {
	lines := make([]SummaryLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, SummaryLine{Name: it.Name, Quantity: it.Quantity, Instructions: it.Instructions})
	}
	return PickupSummary{
		OrderID:    o.ID,
		PickupCode: o.PickupCode,
		Status:     o.Status,
		Total:      o.Total,
		Items:      lines,
		Notes:      o.Notes,
	}
}
