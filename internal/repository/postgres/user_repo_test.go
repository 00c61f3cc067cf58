package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/imalykh/bankcards/internal/errs"
	"github.com/imalykh/bankcards/internal/model"
	"github.com/imalykh/bankcards/internal/repository"
)

func sampleUser() *model.User {
	return &model.User{
		ID:        uuid.Must(uuid.NewV4()),
		Username:  "alice",
		PwdHash:   []byte("hash"),
		SaltAuth:  []byte("salt"),
		Roles:     []string{model.RoleUser},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func userRows(u *model.User) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "username", "pwd_hash", "salt_auth", "roles", "created_at"}).
		AddRow(u.ID, u.Username, u.PwdHash, u.SaltAuth, u.Roles, u.CreatedAt)
}

func TestUserRepo_Create_OK_And_Duplicate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	u := sampleUser()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Username, u.PwdHash, u.SaltAuth, u.Roles, u.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(context.Background(), u))

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Username, u.PwdHash, u.SaltAuth, u.Roles, u.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(context.Background(), u), errs.ErrAlreadyExists)
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	u := sampleUser()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\$1`).
		WithArgs(u.ID).
		WillReturnRows(userRows(u))
	got, err := r.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Username, got.Username)
	require.Equal(t, u.Roles, got.Roles)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\$1`).
		WithArgs(u.ID).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(context.Background(), u.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByUsername(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	u := sampleUser()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE username=\$1`).
		WithArgs(u.Username).
		WillReturnRows(userRows(u))
	got, err := r.GetByUsername(context.Background(), u.Username)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestUserRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	u := sampleUser()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT .+ FROM users ORDER BY username LIMIT \$1 OFFSET \$2`).
		WithArgs(2, 0).
		WillReturnRows(userRows(u))

	out, total, err := r.List(context.Background(), repository.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, out, 1)
}

func TestUserRepo_UpdateRoles(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	id := uuid.Must(uuid.NewV4())
	roles := []string{model.RoleUser, model.RoleAdmin}

	mock.ExpectExec(`UPDATE users SET roles=\$2 WHERE id=\$1`).
		WithArgs(id, roles).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdateRoles(context.Background(), id, roles))

	mock.ExpectExec(`UPDATE users SET roles=\$2 WHERE id=\$1`).
		WithArgs(id, roles).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdateRoles(context.Background(), id, roles), errs.ErrNotFound)
}

func TestUserRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(context.Background(), id))

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(context.Background(), id), errs.ErrNotFound)

	// A user still owning cards trips the FK and cannot be removed.
	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "cards_owner_id_fkey"})
	require.ErrorIs(t, r.Delete(context.Background(), id), errs.ErrInvalidOperation)
}
