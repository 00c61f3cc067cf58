// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// CardStatus is the lifecycle state of a card.
type CardStatus string

// Card lifecycle states. New is the only initial state, Expired is terminal.
const (
	StatusNew            CardStatus = "NEW"
	StatusActive         CardStatus = "ACTIVE"
	StatusBlocked        CardStatus = "BLOCKED"
	StatusBlockRequested CardStatus = "BLOCK_REQUESTED"
	StatusExpired        CardStatus = "EXPIRED"
)

// Valid reports whether s is one of the known lifecycle states.
func (s CardStatus) Valid() bool {
	switch s {
	case StatusNew, StatusActive, StatusBlocked, StatusBlockRequested, StatusExpired:
		return true
	}
	return false
}

// Card is a single payment instrument. The number is stored encrypted;
// NumberHash is a deterministic fingerprint used for uniqueness checks.
type Card struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID // FK -> users.id, immutable
	EncryptedNumber string
	NumberHash      string
	ExpiryDate      time.Time // date only, immutable
	Status          CardStatus
	Balance         decimal.Decimal // NUMERIC(19,2), never negative
	Version         int64           // optimistic concurrency counter
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewCard constructs a freshly issued card in status NEW with zero balance.
func NewCard(id, ownerID uuid.UUID, encryptedNumber, numberHash string, expiry, now time.Time) *Card {
	return &Card{
		ID:              id,
		OwnerID:         ownerID,
		EncryptedNumber: encryptedNumber,
		NumberHash:      numberHash,
		ExpiryDate:      expiry,
		Status:          StatusNew,
		Balance:         decimal.Zero,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ExpiredAsOf reports whether the card is expired at the given moment. A card
// expires on its expiry date: expiry <= today by UTC date.
func (c *Card) ExpiredAsOf(now time.Time) bool {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := c.ExpiryDate.UTC().Date()
	expiry := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return !expiry.After(today)
}

// CardView is the display form of a card: the number appears masked only.
type CardView struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	MaskedNumber string          `json:"card_number_masked"`
	ExpiryDate   string          `json:"expiry_date"`
	Status       CardStatus      `json:"status"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CardBalance is the per-card balance projection returned to owners.
type CardBalance struct {
	ID           uuid.UUID       `json:"id"`
	MaskedNumber string          `json:"card_number_masked"`
	Balance      decimal.Decimal `json:"balance"`
}

// TransferRecord reports a completed funds transfer. It is transient and not
// persisted.
type TransferRecord struct {
	FromCardID  uuid.UUID       `json:"from_card_id"`
	ToCardID    uuid.UUID       `json:"to_card_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// User is an account that owns cards. The password is stored as an Argon2id
// hash with a per-user salt.
type User struct {
	ID        uuid.UUID
	Username  string // unique
	PwdHash   []byte
	SaltAuth  []byte
	Roles     []string
	CreatedAt time.Time
}

// Principal is the authenticated caller: identity plus role set, resolved by
// the auth layer and passed explicitly into every core call.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Roles    []string
}

// HasRole reports whether the principal carries the given role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Well-known roles.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)
