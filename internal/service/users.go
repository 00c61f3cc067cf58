package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/imalykh/bankcards/internal/errs"
	"github.com/imalykh/bankcards/internal/model"
	"github.com/imalykh/bankcards/internal/repository"
)

// UserService exposes the administrative user surface.
type UserService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context, p repository.Pagination) ([]model.User, int64, error)
	// UpdateRoles replaces the user's role set with known roles only.
	UpdateRoles(ctx context.Context, id uuid.UUID, roles []string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type UserServiceImpl struct {
	users repository.UserRepository
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository) *UserServiceImpl {
	return &UserServiceImpl{users: users}
}

func (s *UserServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if id == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	return s.users.GetByID(ctx, id)
}

func (s *UserServiceImpl) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, errs.ErrNotFound
	}
	return s.users.GetByUsername(ctx, username)
}

func (s *UserServiceImpl) List(ctx context.Context, p repository.Pagination) ([]model.User, int64, error) {
	return s.users.List(ctx, p)
}

// UpdateRoles validates and replaces the role set.
func (s *UserServiceImpl) UpdateRoles(ctx context.Context, id uuid.UUID, roles []string) error {
	if id == uuid.Nil {
		return errs.ErrNotFound
	}
	if len(roles) == 0 {
		return errs.InvalidOperationf("role set cannot be empty")
	}
	for _, r := range roles {
		if r != model.RoleUser && r != model.RoleAdmin {
			return errs.InvalidOperationf("unknown role %q", r)
		}
	}
	return s.users.UpdateRoles(ctx, id, roles)
}

func (s *UserServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errs.ErrNotFound
	}
	return s.users.Delete(ctx, id)
}
