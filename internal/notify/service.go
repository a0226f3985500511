package notify

import (
	"context"
	"strings"
	"time"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/user"
)

type Authorizer interface {
	Require(ctx context.Context, identity string, action user.Action, owner string) (user.Role, error)
}

// Inbox is the per-user view over notification records and device tokens.
type Inbox struct {
	repo Repository
	auth Authorizer
	now  func() time.Time
}

func NewInbox(repo Repository, auth Authorizer) *Inbox {
	return &Inbox{repo: repo, auth: auth, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Inbox) List(ctx context.Context, identity string, unreadOnly bool, limit int) ([]Notification, error) {
	if _, err := s.auth.Require(ctx, identity, user.ActionReadNotifications, identity); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, identity, unreadOnly, limit)
}

func (s *Inbox) UnreadCount(ctx context.Context, identity string) (int, error) {
	if _, err := s.auth.Require(ctx, identity, user.ActionReadNotifications, identity); err != nil {
		return 0, err
	}
	return s.repo.UnreadCount(ctx, identity)
}

// MarkRead marks ids (or every unread notification when ids is empty) as
// read and returns how many changed. Already-read and foreign ids are skipped.
func (s *Inbox) MarkRead(ctx context.Context, identity string, ids []string) (int64, error) {
	if _, err := s.auth.Require(ctx, identity, user.ActionReadNotifications, identity); err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, identity, ids, s.now())
}

func (s *Inbox) RegisterToken(ctx context.Context, identity string, req RegisterTokenRequest) (*DeviceToken, error) {
	if _, err := s.auth.Require(ctx, identity, user.ActionReadNotifications, identity); err != nil {
		return nil, err
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "token is required")
	}
	t := &DeviceToken{Token: token, UserID: identity, Platform: req.Platform, CreatedAt: s.now()}
	if err := s.repo.RegisterToken(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
