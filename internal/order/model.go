package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

// Wire values; existing clients depend on the exact spelling.
const (
	StatusPlaced    Status = "placed"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses are the non-terminal statuses in queue priority order.
var ActiveStatuses = []Status{StatusPlaced, StatusConfirmed, StatusPreparing, StatusReady}

func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// TotalTolerance is the largest accepted gap between an order total and the
// sum of its lines.
var TotalTolerance = decimal.New(5, -2)

type Order struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Status      Status          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	PickupCode  string          `json:"pickup_code"`
	PickupTime  *time.Time      `json:"pickup_time,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	Items   []Item         `json:"items,omitempty"`
	History []HistoryEntry `json:"history,omitempty"`

	IdempotencyKey string `json:"-"`
}

// Item is one order line. UnitPrice is the menu price when the order was placed.
type Item struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	LineNo       int             `json:"line_no"`
	MenuItemID   string          `json:"menu_item_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Instructions string          `json:"instructions,omitempty"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// HistoryEntry is an append-only audit row. PreviousStatus is empty for the
// creation entry and ActorID is empty for system changes.
type HistoryEntry struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	NewStatus      Status    `json:"new_status"`
	ActorID        string    `json:"actor_id,omitempty"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ComputeTotal sums the lines, rounded to cents.
func ComputeTotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum.Round(2)
}

// WithinTolerance reports whether two amounts differ by at most TotalTolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(TotalTolerance)
}

// TotalConsistent checks the stored total against the loaded lines.
func (o *Order) TotalConsistent() bool {
	return WithinTolerance(o.Total, ComputeTotal(o.Items))
}
