package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/imalykh/bankcards/internal/model"
)

// UserRepository provides CRUD access for user accounts.
type UserRepository interface {
	// Create inserts a new user. A taken username yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// List returns a page of users ordered by username plus the total count.
	List(ctx context.Context, p Pagination) ([]model.User, int64, error)
	// UpdateRoles replaces the user's role set.
	UpdateRoles(ctx context.Context, id uuid.UUID, roles []string) error
	// Delete removes a user. Fails while the user still owns cards.
	Delete(ctx context.Context, id uuid.UUID) error
}
