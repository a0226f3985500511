package settings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/user"
)

type Authorizer interface {
	Require(ctx context.Context, identity string, action user.Action, owner string) (user.Role, error)
}

// Provider serves the current settings, re-reading the store at most once
// per refresh interval. Until an admin saves settings the defaults apply.
type Provider struct {
	repo     Repository
	auth     Authorizer
	defaults Settings
	refresh  time.Duration
	loc      *time.Location
	log      *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	cur      Settings
	loadedAt time.Time
	loaded   bool
}

func NewProvider(repo Repository, auth Authorizer, defaults Settings, refresh time.Duration, log *slog.Logger) *Provider {
	return &Provider{
		repo:     repo,
		auth:     auth,
		defaults: defaults,
		refresh:  refresh,
		loc:      time.Local,
		log:      log.With("component", "settings"),
		now:      func() time.Time { return time.Now().UTC() },
		cur:      defaults,
	}
}

// Location is the zone operating hours are expressed in.
func (p *Provider) Location() *time.Location { return p.loc }

// Current returns the cached settings, reloading them when stale. A failed
// reload keeps serving the last known value.
func (p *Provider) Current(ctx context.Context) Settings {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.loaded && now.Sub(p.loadedAt) < p.refresh {
		return p.cur
	}
	s, err := p.repo.Get(ctx)
	if err != nil {
		p.log.Warn("reload settings failed; serving cached", "err", apperr.Cause(err))
		return p.cur
	}
	if s == nil {
		p.cur = p.defaults
	} else {
		p.cur = *s
	}
	p.loaded = true
	p.loadedAt = now
	return p.cur
}

// Update applies an admin's partial update and makes it visible immediately.
func (p *Provider) Update(ctx context.Context, actor string, req UpdateRequest) (Settings, error) {
	if _, err := p.auth.Require(ctx, actor, user.ActionManageSettings, ""); err != nil {
		return Settings{}, err
	}
	p.mu.Lock()
	p.loaded = false
	p.mu.Unlock()
	next := p.Current(ctx)

	if req.MaxActiveOrders != nil {
		next.MaxActiveOrders = *req.MaxActiveOrders
	}
	if req.OpenTime != nil {
		next.OpenTime = *req.OpenTime
	}
	if req.CloseTime != nil {
		next.CloseTime = *req.CloseTime
	}
	if req.AcceptingOrders != nil {
		next.AcceptingOrders = *req.AcceptingOrders
	}
	if req.CancelFromPreparing != nil {
		next.CancelFromPreparing = *req.CancelFromPreparing
	}
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	next.UpdatedBy = actor
	next.UpdatedAt = p.now()
	if err := p.repo.Save(ctx, &next); err != nil {
		return Settings{}, err
	}

	p.mu.Lock()
	p.cur = next
	p.loaded = true
	p.loadedAt = next.UpdatedAt
	p.mu.Unlock()
	p.log.Info("settings updated", "actor", actor, "max_active_orders", next.MaxActiveOrders,
		"accepting_orders", next.AcceptingOrders, "cancel_from_preparing", next.CancelFromPreparing)
	return next, nil
}
