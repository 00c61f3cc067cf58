package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/imalykh/bankcards/internal/errs"
	"github.com/imalykh/bankcards/internal/model"
	"github.com/imalykh/bankcards/internal/repository"
)

// CardRepo implements CardRepository using PostgreSQL.
type CardRepo struct{ db *DB }

// NewCardRepo constructs a card repository.
func NewCardRepo(db *DB) *CardRepo { return &CardRepo{db: db} }

const cardColumns = `id, owner_id, encrypted_number, number_hash, expiry_date, status, balance, version, created_at, updated_at`

// Create inserts a freshly issued card row.
func (r *CardRepo) Create(ctx context.Context, c *model.Card) error {
	const q = `
INSERT INTO cards (id, owner_id, encrypted_number, number_hash, expiry_date, status, balance, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.db.Pool.Exec(ctx, q,
		c.ID, c.OwnerID, c.EncryptedNumber, c.NumberHash, c.ExpiryDate,
		string(c.Status), c.Balance, c.Version, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if isFKViolation(err) {
		return errs.ErrOwnerNotFound
	}
	return err
}

// GetByID loads any card by id.
func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	q := `SELECT ` + cardColumns + ` FROM cards WHERE id=$1`
	return scanCard(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByIDAndOwner loads a card filtered by both id and owner. Absence and
// foreign ownership are indistinguishable.
func (r *CardRepo) GetByIDAndOwner(ctx context.Context, ownerID, id uuid.UUID) (*model.Card, error) {
	q := `SELECT ` + cardColumns + ` FROM cards WHERE id=$1 AND owner_id=$2`
	return scanCard(r.db.Pool.QueryRow(ctx, q, id, ownerID))
}

// List returns a page of cards plus the total count for the same filter.
func (r *CardRepo) List(ctx context.Context, f repository.CardFilter, p repository.Pagination) ([]model.Card, int64, error) {
	where, args := cardFilterClause(f)

	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM cards`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + cardColumns + ` FROM cards` + where +
		` ORDER BY created_at, id LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := r.db.Pool.Query(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// UpdateStatus applies a status transition with a base version check.
func (r *CardRepo) UpdateStatus(
	ctx context.Context, id uuid.UUID, status model.CardStatus, baseVer int64,
) (card *model.Card, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT version FROM cards WHERE id=$1 FOR UPDATE`
	const upd = `
UPDATE cards SET status=$2, version=version+1, updated_at=now()
WHERE id=$1
RETURNING ` + cardColumns

	var curVer int64
	if err = tx.QueryRow(ctx, sel, id).Scan(&curVer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if curVer != baseVer {
		return nil, errs.ErrVersionConflict
	}
	return scanCard(tx.QueryRow(ctx, upd, id, string(status)))
}

// Delete hard-removes a card with a base version check.
func (r *CardRepo) Delete(ctx context.Context, id uuid.UUID, baseVer int64) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT version FROM cards WHERE id=$1 FOR UPDATE`
	const del = `DELETE FROM cards WHERE id=$1`

	var curVer int64
	if err = tx.QueryRow(ctx, sel, id).Scan(&curVer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if curVer != baseVer {
		return errs.ErrVersionConflict
	}
	_, err = tx.Exec(ctx, del, id)
	return err
}

// Transfer debits one card and credits another in a single transaction. Rows
// are locked in ascending id order so concurrent transfers cannot deadlock.
func (r *CardRepo) Transfer(ctx context.Context, t repository.TransferFunds) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT balance, version FROM cards WHERE id=$1 FOR UPDATE`

	type lockRes struct {
		balance decimal.Decimal
		version int64
	}
	lock := func(id uuid.UUID) (lockRes, error) {
		var lr lockRes
		if e := tx.QueryRow(ctx, sel, id).Scan(&lr.balance, &lr.version); e != nil {
			if errors.Is(e, pgx.ErrNoRows) {
				return lr, errs.ErrNotFound
			}
			return lr, e
		}
		return lr, nil
	}

	// Deterministic lock order.
	first, second := t.FromID, t.ToID
	if bytes.Compare(second.Bytes(), first.Bytes()) < 0 {
		first, second = second, first
	}
	locked := map[uuid.UUID]lockRes{}
	for _, id := range []uuid.UUID{first, second} {
		var lr lockRes
		if lr, err = lock(id); err != nil {
			return err
		}
		locked[id] = lr
	}

	from, to := locked[t.FromID], locked[t.ToID]
	if from.version != t.FromVersion || to.version != t.ToVersion {
		err = errs.ErrVersionConflict
		return err
	}
	if from.balance.LessThan(t.Amount) {
		err = errs.ErrInsufficientFunds
		return err
	}

	const upd = `UPDATE cards SET balance=$2, version=version+1, updated_at=now() WHERE id=$1`
	if _, err = tx.Exec(ctx, upd, t.FromID, from.balance.Sub(t.Amount)); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, upd, t.ToID, to.balance.Add(t.Amount)); err != nil {
		return err
	}
	return nil
}

func cardFilterClause(f repository.CardFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != uuid.Nil {
		args = append(args, f.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*model.Card, error) {
	var (
		c      model.Card
		status string
	)
	err := row.Scan(&c.ID, &c.OwnerID, &c.EncryptedNumber, &c.NumberHash, &c.ExpiryDate,
		&status, &c.Balance, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	c.Status = model.CardStatus(status)
	return &c, nil
}
