// Package service contains application services for authentication, users and cards.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imalykh/bankcards/internal/crypto/cardcipher"
	"github.com/imalykh/bankcards/internal/errs"
	"github.com/imalykh/bankcards/internal/model"
	"github.com/imalykh/bankcards/internal/repository"
)

// Bounded retries for optimistic-concurrency conflicts and number collisions.
const (
	conflictRetries = 3
	issueAttempts   = 5
)

// CardService owns the card lifecycle state machine and funds transfers.
type CardService interface {
	// Create issues a card for an owner: fresh number, encrypted at rest,
	// status NEW, zero balance.
	Create(ctx context.Context, ownerID uuid.UUID, expiry time.Time) (*model.CardView, error)
	// Block sets status BLOCKED (administrative).
	Block(ctx context.Context, cardID uuid.UUID) (*model.CardView, error)
	// Activate sets status ACTIVE (administrative).
	Activate(ctx context.Context, cardID uuid.UUID) (*model.CardView, error)
	// Delete hard-removes a card in status EXPIRED or NEW (administrative).
	Delete(ctx context.Context, cardID uuid.UUID) error
	// ListAll returns a page over all cards (administrative).
	ListAll(ctx context.Context, f repository.CardFilter, p repository.Pagination) ([]model.CardView, int64, error)
	// ListOwned returns a page over the principal's own cards.
	ListOwned(ctx context.Context, principal model.Principal, p repository.Pagination) ([]model.CardView, int64, error)
	// Balance returns the masked number and balance of an owned card.
	Balance(ctx context.Context, principal model.Principal, cardID uuid.UUID) (*model.CardBalance, error)
	// RequestBlock lets an owner flag a card for blocking.
	RequestBlock(ctx context.Context, principal model.Principal, cardID uuid.UUID) (*model.CardView, error)
	// Transfer atomically moves an amount between two cards of the same owner.
	Transfer(ctx context.Context, principal model.Principal, fromID, toID uuid.UUID,
		amount decimal.Decimal, description string) (*model.TransferRecord, error)
}

type CardServiceImpl struct {
	cards  repository.CardRepository
	users  repository.UserRepository
	cipher *cardcipher.Cipher
	log    *zap.Logger
	now    func() time.Time
}

// NewCardService constructs CardService with required dependencies.
func NewCardService(cards repository.CardRepository, users repository.UserRepository,
	cipher *cardcipher.Cipher, log *zap.Logger) *CardServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &CardServiceImpl{cards: cards, users: users, cipher: cipher, log: log, now: time.Now}
}

// Create issues a new card. Number fingerprint collisions are retried with a
// fresh draw a bounded number of times.
func (s *CardServiceImpl) Create(ctx context.Context, ownerID uuid.UUID, expiry time.Time) (*model.CardView, error) {
	if ownerID == uuid.Nil {
		return nil, errs.ErrOwnerNotFound
	}
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrOwnerNotFound
		}
		return nil, err
	}

	for attempt := 0; attempt < issueAttempts; attempt++ {
		number, err := cardcipher.GenerateNumber()
		if err != nil {
			return nil, fmt.Errorf("generate number: %w", err)
		}
		encrypted, err := s.cipher.Encrypt(number)
		if err != nil {
			return nil, err
		}
		id, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		card := model.NewCard(id, ownerID, encrypted, s.cipher.Fingerprint(number), expiry, s.now().UTC())

		err = s.cards.Create(ctx, card)
		switch {
		case err == nil:
			s.log.Info("card created", zap.Stringer("card_id", card.ID), zap.Stringer("owner_id", ownerID))
			return s.view(card)
		case errors.Is(err, errs.ErrAlreadyExists):
			continue // number collision, draw again
		case errors.Is(err, errs.ErrOwnerNotFound):
			return nil, errs.ErrOwnerNotFound
		default:
			return nil, err
		}
	}
	return nil, errs.ErrIssuanceFailed
}

// Block transitions a card to BLOCKED.
func (s *CardServiceImpl) Block(ctx context.Context, cardID uuid.UUID) (*model.CardView, error) {
	return s.transition(ctx, cardID, model.StatusBlocked, func(card *model.Card) error {
		if card.Status == model.StatusExpired {
			return errs.InvalidOperationf("cannot block expired card %s", card.ID)
		}
		if card.Status == model.StatusBlocked {
			return errs.InvalidOperationf("card %s already BLOCKED", card.ID)
		}
		return nil
	})
}

// Activate transitions a card to ACTIVE. Expired cards cannot be activated.
func (s *CardServiceImpl) Activate(ctx context.Context, cardID uuid.UUID) (*model.CardView, error) {
	return s.transition(ctx, cardID, model.StatusActive, func(card *model.Card) error {
		if card.Status == model.StatusExpired {
			return errs.InvalidOperationf("cannot activate expired card %s", card.ID)
		}
		if card.Status == model.StatusActive {
			return errs.InvalidOperationf("card %s already ACTIVE", card.ID)
		}
		return nil
	})
}

// Delete removes a card permanently. Only EXPIRED and NEW cards qualify.
func (s *CardServiceImpl) Delete(ctx context.Context, cardID uuid.UUID) error {
	return s.withConflictRetry(func() error {
		card, err := s.getCard(ctx, cardID)
		if err != nil {
			return err
		}
		if card.Status != model.StatusExpired && card.Status != model.StatusNew {
			return errs.InvalidOperationf("card %s in status %s cannot be deleted", card.ID, card.Status)
		}
		if err := s.cards.Delete(ctx, cardID, card.Version); err != nil {
			return err
		}
		s.log.Info("card deleted", zap.Stringer("card_id", cardID))
		return nil
	})
}

// ListAll returns a page of all cards for administrators.
func (s *CardServiceImpl) ListAll(ctx context.Context, f repository.CardFilter, p repository.Pagination) ([]model.CardView, int64, error) {
	cards, total, err := s.cards.List(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, cards)
	return views, total, err
}

// ListOwned returns a page of the principal's cards.
func (s *CardServiceImpl) ListOwned(ctx context.Context, principal model.Principal, p repository.Pagination) ([]model.CardView, int64, error) {
	cards, total, err := s.cards.List(ctx, repository.CardFilter{OwnerID: principal.UserID}, p)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, cards)
	return views, total, err
}

// Balance returns the masked number plus balance of a card the principal owns.
func (s *CardServiceImpl) Balance(ctx context.Context, principal model.Principal, cardID uuid.UUID) (*model.CardBalance, error) {
	card, err := s.getOwnedCard(ctx, principal, cardID)
	if err != nil {
		return nil, err
	}
	number, err := s.cipher.Decrypt(card.EncryptedNumber)
	if err != nil {
		return nil, err
	}
	return &model.CardBalance{ID: card.ID, MaskedNumber: cardcipher.Mask(number), Balance: card.Balance}, nil
}

// RequestBlock flags an owned card for blocking by an administrator.
func (s *CardServiceImpl) RequestBlock(ctx context.Context, principal model.Principal, cardID uuid.UUID) (*model.CardView, error) {
	var out *model.CardView
	err := s.withConflictRetry(func() error {
		card, err := s.getOwnedCard(ctx, principal, cardID)
		if err != nil {
			return err
		}
		if card.Status == model.StatusExpired {
			return errs.InvalidOperationf("card %s is expired", card.ID)
		}
		updated, err := s.cards.UpdateStatus(ctx, card.ID, model.StatusBlockRequested, card.Version)
		if err != nil {
			return err
		}
		s.log.Info("block requested",
			zap.String("username", principal.Username), zap.Stringer("card_id", cardID))
		out, err = s.view(updated)
		return err
	})
	return out, err
}

// Transfer validates then atomically moves funds between two cards of the
// same owner. Checks run in a fixed order; the first failure wins.
func (s *CardServiceImpl) Transfer(ctx context.Context, principal model.Principal,
	fromID, toID uuid.UUID, amount decimal.Decimal, description string) (*model.TransferRecord, error) {
	var record *model.TransferRecord
	err := s.withConflictRetry(func() error {
		from, err := s.getOwnedCard(ctx, principal, fromID)
		if err != nil {
			return err
		}
		to, err := s.getOwnedCard(ctx, principal, toID)
		if err != nil {
			return err
		}
		if fromID == toID {
			return errs.InvalidOperationf("cannot transfer to the same card")
		}
		if !amount.IsPositive() {
			return errs.InvalidOperationf("amount must be positive")
		}
		if amount.Exponent() < -2 {
			return errs.InvalidOperationf("amount scale exceeds 2 decimal digits")
		}
		if from.Status != model.StatusActive {
			return errs.InvalidOperationf("card %s is not active", from.ID)
		}
		if to.Status != model.StatusActive {
			return errs.InvalidOperationf("card %s is not active", to.ID)
		}
		if from.Balance.LessThan(amount) {
			return errs.ErrInsufficientFunds
		}

		err = s.cards.Transfer(ctx, repository.TransferFunds{
			FromID:      fromID,
			ToID:        toID,
			FromVersion: from.Version,
			ToVersion:   to.Version,
			Amount:      amount,
		})
		if err != nil {
			return err
		}
		s.log.Info("transfer completed",
			zap.String("username", principal.Username),
			zap.Stringer("from", fromID), zap.Stringer("to", toID),
			zap.String("amount", amount.String()))
		record = &model.TransferRecord{
			FromCardID:  fromID,
			ToCardID:    toID,
			Amount:      amount,
			Description: description,
			ProcessedAt: s.now().UTC(),
		}
		return nil
	})
	return record, err
}

// transition runs a validated status change with conflict retries.
func (s *CardServiceImpl) transition(ctx context.Context, cardID uuid.UUID,
	target model.CardStatus, check func(*model.Card) error) (*model.CardView, error) {
	var out *model.CardView
	err := s.withConflictRetry(func() error {
		card, err := s.getCard(ctx, cardID)
		if err != nil {
			return err
		}
		if err := check(card); err != nil {
			return err
		}
		updated, err := s.cards.UpdateStatus(ctx, card.ID, target, card.Version)
		if err != nil {
			return err
		}
		s.log.Info("card status changed",
			zap.Stringer("card_id", cardID), zap.String("status", string(target)))
		out, err = s.view(updated)
		return err
	})
	return out, err
}

// withConflictRetry re-runs the read-modify-write cycle a bounded number of
// times on optimistic-lock conflicts; the last conflict is surfaced.
func (s *CardServiceImpl) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if err = fn(); !errors.Is(err, errs.ErrVersionConflict) {
			return err
		}
	}
	return err
}

// getCard loads a card by id with the lazy expiry check applied.
func (s *CardServiceImpl) getCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyExpiry(ctx, card), nil
}

// getOwnedCard loads a card only if the principal owns it. Absent and
// foreign-owned are indistinguishable to the caller.
func (s *CardServiceImpl) getOwnedCard(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Card, error) {
	card, err := s.cards.GetByIDAndOwner(ctx, principal.UserID, id)
	if err != nil {
		return nil, err
	}
	return s.applyExpiry(ctx, card), nil
}

// applyExpiry lazily transitions a card past its expiry date. The store write
// is best-effort; the returned card always reflects the expired state, so no
// operation is ever judged against a stale status.
func (s *CardServiceImpl) applyExpiry(ctx context.Context, card *model.Card) *model.Card {
	if card.Status == model.StatusExpired || !card.ExpiredAsOf(s.now()) {
		return card
	}
	updated, err := s.cards.UpdateStatus(ctx, card.ID, model.StatusExpired, card.Version)
	if err == nil {
		s.log.Info("card expired", zap.Stringer("card_id", card.ID))
		return updated
	}
	if !errors.Is(err, errs.ErrVersionConflict) {
		s.log.Warn("persist card expiry", zap.Stringer("card_id", card.ID), zap.Error(err))
	}
	card.Status = model.StatusExpired
	return card
}

func (s *CardServiceImpl) view(card *model.Card) (*model.CardView, error) {
	number, err := s.cipher.Decrypt(card.EncryptedNumber)
	if err != nil {
		return nil, err
	}
	return &model.CardView{
		ID:           card.ID,
		OwnerID:      card.OwnerID,
		MaskedNumber: cardcipher.Mask(number),
		ExpiryDate:   card.ExpiryDate.UTC().Format("2006-01-02"),
		Status:       card.Status,
		Balance:      card.Balance,
		CreatedAt:    card.CreatedAt,
	}, nil
}

func (s *CardServiceImpl) views(ctx context.Context, cards []model.Card) ([]model.CardView, error) {
	out := make([]model.CardView, 0, len(cards))
	for i := range cards {
		card := s.applyExpiry(ctx, &cards[i])
		v, err := s.view(card)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}
