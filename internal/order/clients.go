package order

import (
	"context"
	"time"

	"github.com/MikeMC777/cafeteria/internal/menu"
	"github.com/MikeMC777/cafeteria/internal/notify"
	"github.com/MikeMC777/cafeteria/internal/settings"
	"github.com/MikeMC777/cafeteria/internal/user"
)

// Authorizer resolves callers and checks their permissions.
type Authorizer interface {
	ResolveRole(ctx context.Context, identity string) (user.Role, error)
	Require(ctx context.Context, identity string, action user.Action, owner string) (user.Role, error)
}

// Catalog prices and validates requested menu items.
type Catalog interface {
	GetItem(ctx context.Context, id string) (*menu.Item, error)
	IsAvailable(ctx context.Context, id string) (bool, error)
}

// Pusher delivers committed notifications to devices, asynchronously.
type Pusher interface {
	Push(ns ...notify.Notification)
}

// SettingsSource supplies the current operating settings.
type SettingsSource interface {
	Current(ctx context.Context) settings.Settings
	Location() *time.Location
}
