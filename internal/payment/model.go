// Package payment records payment outcomes for orders. No instrument data is stored.
package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodMobileWallet Method = "mobile_wallet"
	MethodMealPlan     Method = "meal_plan"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodMobileWallet, MethodMealPlan:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

var next = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusRefunded},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Settled statuses carry a processed timestamp.
func (s Status) Settled() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRefunded
}

func CanMove(from, to Status) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Payment struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      Method          `json:"method"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	Status      Status          `json:"status"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RecordRequest is the payload of payment recording.
type RecordRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
	Method      Method          `json:"method" validate:"required,oneof=cash card mobile_wallet meal_plan"`
	ProviderRef string          `json:"provider_ref" validate:"max=255"`
	Status      Status          `json:"status" validate:"omitempty,oneof=pending processing completed"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=pending processing completed failed refunded"`
}
