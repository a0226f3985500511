// Package order owns the order aggregate: its state machine, storage,
// pickup codes and the use cases customers, staff and the pickup counter call.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/notify"
	"github.com/MikeMC777/cafeteria/internal/user"
)

type Service struct {
	repo     Repository
	auth     Authorizer
	catalog  Catalog
	settings SettingsSource
	pusher   Pusher
	codes    *Allocator
	log      *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, auth Authorizer, catalog Catalog, settings SettingsSource, pusher Pusher, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		auth:     auth,
		catalog:  catalog,
		settings: settings,
		pusher:   pusher,
		codes:    NewAllocator(repo),
		log:      log.With("component", "order_service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func newID() string { return uuid.NewString() }

// replayed carries the order created earlier under the same idempotency key.
type replayed struct{ order *Order }

func (replayed) Error() string { return "idempotent replay" }

// PlaceOrder creates an order for owner. The total is computed from current
// menu prices. With a non-empty idempotencyKey a repeated call returns the
// order created by the first one, and created is false.
func (s *Service) PlaceOrder(ctx context.Context, owner string, req CreateOrderRequest, idempotencyKey string) (o *Order, created bool, err error) {
	if _, err := s.auth.Require(ctx, owner, user.ActionPlaceOrder, owner); err != nil {
		return nil, false, err
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		prev, err := s.repo.FindByIdempotencyKey(ctx, owner, idempotencyKey)
		if err == nil {
			return prev, false, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, false, err
		}
	}
	if len(req.Items) == 0 {
		return nil, false, apperr.New(apperr.ErrInvalidInput, "order has no items")
	}

	now := s.now()
	if err := s.checkOpen(ctx, now); err != nil {
		return nil, false, err
	}

	o = &Order{
		ID:             newID(),
		OwnerID:        owner,
		Status:         StatusPlaced,
		Notes:          strings.TrimSpace(req.Notes),
		PickupTime:     req.PickupTime,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if o.PickupTime != nil {
		if o.PickupTime.Before(now) {
			return nil, false, apperr.New(apperr.ErrInvalidInput, "pickup_time is in the past")
		}
		pt := o.PickupTime.UTC()
		o.PickupTime = &pt
	}
	for i, line := range req.Items {
		it, err := s.priceLine(ctx, line)
		if err != nil {
			return nil, false, err
		}
		it.ID = newID()
		it.OrderID = o.ID
		it.LineNo = i + 1
		o.Items = append(o.Items, *it)
	}
	o.Total = ComputeTotal(o.Items)
	if req.Total != nil && !WithinTolerance(*req.Total, o.Total) {
		s.log.Warn("client total differs from computed total", "owner", owner,
			"client_total", req.Total.StringFixed(2), "total", o.Total.StringFixed(2))
	}
	o.History = []HistoryEntry{{
		ID:        newID(),
		OrderID:   o.ID,
		NewStatus: StatusPlaced,
		ActorID:   owner,
		CreatedAt: now,
	}}

	var notices []notify.Notification
	code, err := s.codes.Reserve(ctx, func(code string) error {
		o.PickupCode = code
		notices = []notify.Notification{notify.New(owner, o.ID, notify.TypeOrderPlaced,
			"Order received", fmt.Sprintf("Your order %s was received. Total %s.", code, o.Total.StringFixed(2)), now)}
		err := s.repo.Create(ctx, o, notices)
		if errors.Is(err, errDuplicate) && idempotencyKey != "" {
			if prev, ferr := s.repo.FindByIdempotencyKey(ctx, owner, idempotencyKey); ferr == nil {
				return replayed{order: prev}
			}
		}
		return err
	})
	var rp replayed
	if errors.As(err, &rp) {
		return rp.order, false, nil
	}
	if err != nil {
		return nil, false, apperr.FromStore(err)
	}

	s.log.Info("order placed", "order_id", o.ID, "owner", owner, "pickup_code", code,
		"items", len(o.Items), "total", o.Total.StringFixed(2))
	s.pusher.Push(notices...)
	return o, true, nil
}

func (s *Service) checkOpen(ctx context.Context, now time.Time) error {
	cur := s.settings.Current(ctx)
	if !cur.AcceptingOrders {
		return apperr.New(apperr.ErrUnavailable, "not accepting orders right now")
	}
	if !cur.IsOpen(now, s.settings.Location()) {
		return apperr.New(apperr.ErrUnavailable, "outside operating hours (%s-%s)", cur.OpenTime, cur.CloseTime)
	}
	active, err := s.repo.CountActive(ctx)
	if err != nil {
		return err
	}
	if active >= cur.MaxActiveOrders {
		return apperr.New(apperr.ErrUnavailable, "kitchen is at capacity, try again shortly")
	}
	return nil
}

func (s *Service) priceLine(ctx context.Context, line CreateOrderItem) (*Item, error) {
	if line.Quantity < 1 {
		return nil, apperr.New(apperr.ErrInvalidInput, "quantity must be >= 1")
	}
	ok, err := s.catalog.IsAvailable(ctx, line.MenuItemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.ErrInvalidItem, "menu item %s is not available", line.MenuItemID)
	}
	mi, err := s.catalog.GetItem(ctx, line.MenuItemID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.ErrInvalidItem, "menu item %s is not available", line.MenuItemID)
	}
	if err != nil {
		return nil, err
	}
	return &Item{
		MenuItemID:   mi.ID,
		Name:         mi.Name,
		Quantity:     line.Quantity,
		UnitPrice:    mi.Price,
		Instructions: strings.TrimSpace(line.Instructions),
	}, nil
}

// GetOrder returns the order with its lines and history to its owner or staff.
func (s *Service) GetOrder(ctx context.Context, requester, id string) (*Order, error) {
	if _, err := s.auth.ResolveRole(ctx, requester); err != nil {
		return nil, err
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.auth.Require(ctx, requester, user.ActionViewOrder, o.OwnerID); err != nil {
		return nil, err
	}
	return o, nil
}

// TransitionStatus moves an order to status to on behalf of actor. Staff may
// make any legal move; an owner may only cancel while the order is still
// cancellable. Asking for the current status is a no-op.
func (s *Service) TransitionStatus(ctx context.Context, actor, id string, to Status, note string) (*Order, error) {
	if !to.Valid() {
		return nil, apperr.New(apperr.ErrInvalidInput, "unknown status %q", to)
	}
	role, err := s.auth.ResolveRole(ctx, actor)
	if err != nil {
		return nil, err
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sm := s.stateMachine(ctx)
	isOwner := actor == o.OwnerID
	switch {
	case user.Allowed(role, actor, user.ActionTransitionOrder, o.OwnerID):
	case to == StatusCancelled && user.Allowed(role, actor, user.ActionCancelOrder, o.OwnerID) && sm.Cancellable(o.Status):
	default:
		return nil, apperr.New(apperr.ErrForbidden, "not permitted to move order from %s to %s", o.Status, to)
	}

	if o.Status == to {
		return o, nil
	}
	if !sm.CanTransition(o.Status, to) {
		return nil, apperr.New(apperr.ErrInvalidTransition, "cannot move order from %s to %s", o.Status, to)
	}

	now := s.now()
	t := Transition{
		OrderID: o.ID,
		From:    o.Status,
		To:      to,
		ActorID: actor,
		Note:    strings.TrimSpace(note),
		At:      now,
	}
	switch {
	case to == StatusReady:
		t.Notices = append(t.Notices, notify.New(o.OwnerID, o.ID, notify.TypeOrderReady,
			"Order ready", fmt.Sprintf("Your order is ready for pickup. Show code %s at the counter.", o.PickupCode), now))
	case to == StatusCancelled && !isOwner:
		msg := "Your order was cancelled by the cafeteria."
		if t.Note != "" {
			msg = fmt.Sprintf("Your order was cancelled by the cafeteria: %s", t.Note)
		}
		t.Notices = append(t.Notices, notify.New(o.OwnerID, o.ID, notify.TypeOrderCancelled, "Order cancelled", msg, now))
	}

	if err := s.repo.Transition(ctx, t); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.log.Info("transition lost race", "order_id", o.ID, "from", o.Status, "to", to, "actor", actor)
		}
		return nil, err
	}
	s.log.Info("order transitioned", "order_id", o.ID, "from", o.Status, "to", to, "actor", actor, "role", role)
	s.pusher.Push(t.Notices...)

	return s.repo.GetByID(ctx, o.ID)
}

// Cancel is TransitionStatus to cancelled with an optional reason.
func (s *Service) Cancel(ctx context.Context, actor, id, reason string) (*Order, error) {
	return s.TransitionStatus(ctx, actor, id, StatusCancelled, reason)
}

// ListQueue returns the kitchen queue to staff. An empty filter means every
// active status.
func (s *Service) ListQueue(ctx context.Context, actor string, filter []Status) ([]Order, error) {
	if _, err := s.auth.Require(ctx, actor, user.ActionViewQueue, ""); err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		filter = ActiveStatuses
	}
	for _, st := range filter {
		if !st.Valid() || st.Terminal() {
			return nil, apperr.New(apperr.ErrInvalidInput, "queue status must be one of placed, confirmed, preparing, ready")
		}
	}
	return s.repo.ListQueue(ctx, filter)
}

// ListMine pages through the caller's own orders, newest first.
func (s *Service) ListMine(ctx context.Context, owner string, limit, offset int) ([]Order, error) {
	if _, err := s.auth.Require(ctx, owner, user.ActionViewOrder, owner); err != nil {
		return nil, err
	}
	return s.repo.ListByOwner(ctx, owner, limit, offset)
}

// VerifyPickup finds the order a pickup code belongs to. Only an order that
// is ready matches; everything else, malformed codes included, is NotFound.
func (s *Service) VerifyPickup(ctx context.Context, code string) (*Order, error) {
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return nil, ErrNotFound
	}
	return s.repo.FindReadyByCode(ctx, code)
}

func (s *Service) stateMachine(ctx context.Context) StateMachine {
	return StateMachine{CancelFromPreparing: s.settings.Current(ctx).CancelFromPreparing}
}
