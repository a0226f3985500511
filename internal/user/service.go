package user

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MikeMC777/cafeteria/internal/apperr"
)

const roleCacheSize = 4096

// Service provisions profiles and resolves roles for authorization.
type Service struct {
	repo  Repository
	roles *expirable.LRU[string, Role]
	log   *slog.Logger
	now   func() time.Time
}

// NewService builds the resolver. Roles are cached for at most ttl so that a
// role change takes effect promptly; ttl <= 0 disables caching.
func NewService(repo Repository, ttl time.Duration, log *slog.Logger) *Service {
	s := &Service{
		repo: repo,
		log:  log.With("component", "user_service"),
		now:  func() time.Time { return time.Now().UTC() },
	}
	if ttl > 0 {
		s.roles = expirable.NewLRU[string, Role](roleCacheSize, nil, ttl)
	}
	return s
}

// Provision creates a customer profile for a newly signed-in identity. It is
// idempotent: an existing profile is returned unchanged.
func (s *Service) Provision(ctx context.Context, identity, displayNameHint, email string) (*Profile, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, apperr.New(apperr.ErrUnauthenticated, "identity is required")
	}
	name := strings.TrimSpace(displayNameHint)
	if name == "" {
		name = "Customer"
	}
	now := s.now()
	p := &Profile{
		ID:          identity,
		Role:        RoleCustomer,
		DisplayName: name,
		Email:       strings.TrimSpace(email),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.repo.GetByID(ctx, identity)
	}
	s.log.Info("profile provisioned", "identity", identity)
	return p, nil
}

func (s *Service) GetProfile(ctx context.Context, identity string) (*Profile, error) {
	return s.repo.GetByID(ctx, identity)
}

// ResolveRole returns the caller's role. It fails with NotFound when the
// identity has not been provisioned.
func (s *Service) ResolveRole(ctx context.Context, identity string) (Role, error) {
	if identity == "" {
		return "", apperr.New(apperr.ErrUnauthenticated, "identity is required")
	}
	if s.roles != nil {
		if r, ok := s.roles.Get(identity); ok {
			return r, nil
		}
	}
	p, err := s.repo.GetByID(ctx, identity)
	if err != nil {
		return "", err
	}
	if s.roles != nil {
		s.roles.Add(identity, p.Role)
	}
	return p.Role, nil
}

// Authorize reports whether identity may perform action on a resource owned
// by owner (empty when the resource has no owner).
func (s *Service) Authorize(ctx context.Context, identity string, action Action, owner string) (bool, error) {
	role, err := s.ResolveRole(ctx, identity)
	if err != nil {
		return false, err
	}
	return Allowed(role, identity, action, owner), nil
}

// Require is Authorize that turns a denial into ErrForbidden and returns the
// resolved role for callers that branch on it.
func (s *Service) Require(ctx context.Context, identity string, action Action, owner string) (Role, error) {
	role, err := s.ResolveRole(ctx, identity)
	if err != nil {
		return "", err
	}
	if !Allowed(role, identity, action, owner) {
		return "", apperr.New(apperr.ErrForbidden, "%s not permitted", action)
	}
	return role, nil
}

// SetRole changes a profile's role. Only admins may do this.
func (s *Service) SetRole(ctx context.Context, actor, target string, role Role) (*Profile, error) {
	if !role.Valid() {
		return nil, apperr.New(apperr.ErrInvalidInput, "unknown role %q", role)
	}
	if _, err := s.Require(ctx, actor, ActionManageRoles, ""); err != nil {
		return nil, err
	}
	ok, err := s.repo.UpdateRole(ctx, target, role, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	if s.roles != nil {
		s.roles.Remove(target)
	}
	s.log.Info("role changed", "actor", actor, "target", target, "role", role)
	return s.repo.GetByID(ctx, target)
}

// Grant provisions identity if needed and gives it role without an acting
// admin. It is the operator path used to seed the first admin.
func (s *Service) Grant(ctx context.Context, identity, displayName string, role Role) (*Profile, error) {
	if !role.Valid() {
		return nil, apperr.New(apperr.ErrInvalidInput, "unknown role %q", role)
	}
	p, err := s.Provision(ctx, identity, displayName, "")
	if err != nil {
		return nil, err
	}
	if p.Role == role {
		return p, nil
	}
	if _, err := s.repo.UpdateRole(ctx, p.ID, role, s.now()); err != nil {
		return nil, err
	}
	if s.roles != nil {
		s.roles.Remove(p.ID)
	}
	s.log.Warn("role granted by operator", "target", p.ID, "role", role)
	return s.repo.GetByID(ctx, p.ID)
}
