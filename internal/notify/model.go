package notify

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeOrderPlaced    Type = "order_placed"
	TypeOrderReady     Type = "order_ready"
	TypeOrderCancelled Type = "order_cancelled"
	TypeSystem         Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeOrderPlaced, TypeOrderReady, TypeOrderCancelled, TypeSystem:
		return true
	}
	return false
}

// Notification is the durable record behind a push; an unset ReadAt means unread.
type Notification struct {
	ID      string     `json:"id"`
	UserID  string     `json:"user_id"`
	OrderID string     `json:"order_id,omitempty"`
	Type    Type       `json:"type"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	SentAt  time.Time  `json:"sent_at"`
	ReadAt  *time.Time `json:"read_at,omitempty"`
}

func New(userID, orderID string, typ Type, title, message string, at time.Time) Notification {
	return Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		OrderID: orderID,
		Type:    typ,
		Title:   title,
		Message: message,
		SentAt:  at,
	}
}

// DeviceToken is a push destination registered by a signed-in device.
type DeviceToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PushMessage is what the push delivery service receives per device.
type PushMessage struct {
	Token          string `json:"token"`
	NotificationID string `json:"notification_id"`
	Type           Type   `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	OrderID        string `json:"order_id,omitempty"`
}

// MarkReadRequest marks the listed notifications, or all unread ones when IDs is empty.
type MarkReadRequest struct {
	IDs []string `json:"ids" validate:"omitempty,max=200,dive,required"`
}

type RegisterTokenRequest struct {
	Token    string `json:"token" validate:"required,max=512"`
	Platform string `json:"platform" validate:"omitempty,oneof=ios android web"`
}
