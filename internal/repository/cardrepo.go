// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/imalykh/bankcards/internal/model"
)

// Pagination limits list queries. Offset is row-based.
type Pagination struct {
	Limit  int
	Offset int
}

// CardFilter narrows card listings. Zero values mean "any".
type CardFilter struct {
	OwnerID uuid.UUID
	Status  model.CardStatus
}

// TransferFunds describes an atomic balance move between two cards. The
// expected versions come from the caller's reads; a mismatch at commit time is
// a version conflict.
type TransferFunds struct {
	FromID      uuid.UUID
	ToID        uuid.UUID
	FromVersion int64
	ToVersion   int64
	Amount      decimal.Decimal
}

// CardRepository provides versioned access to cards.
type CardRepository interface {
	// Create inserts a freshly issued card. A duplicate number fingerprint
	// yields errs.ErrAlreadyExists.
	Create(ctx context.Context, c *model.Card) error

	// GetByID loads any card by id.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error)

	// GetByIDAndOwner loads a card only when it belongs to the given owner.
	// Absent and not-owned both yield errs.ErrNotFound.
	GetByIDAndOwner(ctx context.Context, ownerID, id uuid.UUID) (*model.Card, error)

	// List returns a page of cards matching the filter plus the total count.
	List(ctx context.Context, f CardFilter, p Pagination) ([]model.Card, int64, error)

	// UpdateStatus applies a status transition with a base version check and
	// returns the updated card.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.CardStatus, baseVer int64) (*model.Card, error)

	// Delete hard-removes a card with a base version check.
	Delete(ctx context.Context, id uuid.UUID, baseVer int64) error

	// Transfer atomically debits one card and credits another. Both rows are
	// committed together or not at all.
	Transfer(ctx context.Context, t TransferFunds) error
}
