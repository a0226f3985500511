package payment

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/order"
	"github.com/MikeMC777/cafeteria/internal/user"
)

// OrderReader loads an order on behalf of a requester, enforcing access.
type OrderReader interface {
	GetOrder(ctx context.Context, requester, id string) (*order.Order, error)
}

type Authorizer interface {
	Require(ctx context.Context, identity string, action user.Action, owner string) (user.Role, error)
}

type Service struct {
	repo   Repository
	orders OrderReader
	auth   Authorizer
	log    *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, orders OrderReader, auth Authorizer, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		orders: orders,
		auth:   auth,
		log:    log.With("component", "payment"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record stores the payment outcome for an order. The amount must match the
// order total within order.TotalTolerance and an order takes one payment.
func (s *Service) Record(ctx context.Context, actor, orderID string, req RecordRequest) (*Payment, error) {
	o, err := s.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.auth.Require(ctx, actor, user.ActionRecordPayment, o.OwnerID); err != nil {
		return nil, err
	}
	if o.Status == order.StatusCancelled {
		return nil, apperr.New(apperr.ErrInvalidInput, "order is cancelled")
	}
	if !req.Method.Valid() {
		return nil, apperr.New(apperr.ErrInvalidInput, "unknown payment method %q", req.Method)
	}
	status := req.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusProcessing && status != StatusCompleted {
		return nil, apperr.New(apperr.ErrInvalidInput, "a payment cannot start as %s", status)
	}
	if req.Amount.IsNegative() || !order.WithinTolerance(req.Amount, o.Total) {
		return nil, apperr.New(apperr.ErrInvalidInput, "amount %s does not match order total %s",
			req.Amount.StringFixed(2), o.Total.StringFixed(2))
	}

	now := s.now()
	p := &Payment{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		Amount:      req.Amount.Round(2),
		Method:      req.Method,
		ProviderRef: strings.TrimSpace(req.ProviderRef),
		Status:      status,
		CreatedAt:   now,
	}
	if status.Settled() {
		p.ProcessedAt = &now
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("payment recorded", "payment_id", p.ID, "order_id", o.ID, "method", p.Method, "status", p.Status)
	return p, nil
}

// ForOrder returns the payment of an order visible to requester.
func (s *Service) ForOrder(ctx context.Context, requester, orderID string) (*Payment, error) {
	if _, err := s.orders.GetOrder(ctx, requester, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetByOrder(ctx, orderID)
}

// UpdateStatus moves a payment along pending -> processing -> completed ->
// refunded (or to failed). Staff only.
func (s *Service) UpdateStatus(ctx context.Context, actor, id string, to Status) (*Payment, error) {
	if _, err := s.auth.Require(ctx, actor, user.ActionUpdatePayment, ""); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, apperr.New(apperr.ErrInvalidInput, "unknown payment status %q", to)
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == to {
		return p, nil
	}
	if !CanMove(p.Status, to) {
		return nil, apperr.New(apperr.ErrInvalidTransition, "cannot move payment from %s to %s", p.Status, to)
	}
	var processed *time.Time
	if to.Settled() {
		now := s.now()
		processed = &now
	}
	if err := s.repo.UpdateStatus(ctx, id, p.Status, to, processed); err != nil {
		return nil, err
	}
	s.log.Info("payment status changed", "payment_id", id, "from", p.Status, "to", to, "actor", actor)
	return s.repo.GetByID(ctx, id)
}
