package user

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaff is true for staff and admin; both may act on any order.
func (r Role) IsStaff() bool { return r == RoleStaff || r == RoleAdmin }

// Profile is created on first sign-in and keyed by the identity provider's id.
type Profile struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Action names something a caller wants to do.
type Action string

const (
	ActionPlaceOrder        Action = "order.place"
	ActionViewOrder         Action = "order.view"
	ActionCancelOrder       Action = "order.cancel"
	ActionTransitionOrder   Action = "order.transition"
	ActionViewQueue         Action = "order.queue"
	ActionRecordPayment     Action = "payment.record"
	ActionUpdatePayment     Action = "payment.update"
	ActionReadNotifications Action = "notification.read"
	ActionManageMenu        Action = "menu.manage"
	ActionManageRoles       Action = "profile.role"
	ActionManageSettings    Action = "settings.manage"
)

var adminOnly = map[Action]bool{
	ActionManageMenu:     true,
	ActionManageRoles:    true,
	ActionManageSettings: true,
}

var staffOnly = map[Action]bool{
	ActionTransitionOrder: true,
	ActionViewQueue:       true,
	ActionUpdatePayment:   true,
}

// Allowed applies the access rules: admin-only actions need admin, staff-only
// actions need staff or admin, and everything else is open to staff/admin on
// any resource and to customers on resources they own.
func Allowed(role Role, identity string, action Action, owner string) bool {
	switch {
	case adminOnly[action]:
		return role == RoleAdmin
	case staffOnly[action]:
		return role.IsStaff()
	case role.IsStaff():
		return true
	}
	return owner == "" || owner == identity
}
