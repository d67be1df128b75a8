package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/citygate/internal/common"
	"github.com/dmitrijs2005/citygate/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertUserQ = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*username,\s*password_hash,\s*email\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+created_at\s*$`
	insertRoleQ = `^INSERT\s+INTO\s+user_roles\s*\(user_id,\s*role\)\s*VALUES\s*\(\$1,\s*\$2\)`
	selectUserQ = `(?s)^SELECT\s+id,\s*username,\s*password_hash,\s*email,\s*created_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s*$`
	selectRoleQ = `^SELECT\s+role\s+FROM\s+user_roles\s+WHERE\s+user_id\s*=\s*\$1`
	updateUserQ = `(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2,\s*email\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(insertUserQ).
		WithArgs(sqlmock.AnyArg(), "alice", "hash", "alice@city.io").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectExec(insertRoleQ).WithArgs(sqlmock.AnyArg(), "USER").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertRoleQ).WithArgs(sqlmock.AnyArg(), "OPERATOR").WillReturnResult(sqlmock.NewResult(0, 1))

	u := &models.User{UserName: "alice", PasswordHash: "hash", Email: "alice@city.io", Roles: []string{"USER", "OPERATOR"}}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Len(t, got.ID, 36)
	assert.Equal(t, created, got.CreatedAt)
}

func TestCreate_EmptyEmailIsNull(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertUserQ).
		WithArgs(sqlmock.AnyArg(), "bob", "hash", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	_, err := repo.Create(context.Background(), &models.User{UserName: "bob", PasswordHash: "hash"})
	require.NoError(t, err)
}

func TestCreate_UniqueViolations(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{constraint: "users_username_key", want: common.ErrDuplicateIdentity},
		{constraint: "users_email_key", want: common.ErrEmailTaken},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectQuery(insertUserQ).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			_, err := repo.Create(context.Background(), &models.User{UserName: "alice", PasswordHash: "h"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(insertUserQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice", PasswordHash: "h"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestCreate_RoleInsertError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(insertUserQ).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(insertRoleQ).WillReturnError(errors.New("fk"))

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice", PasswordHash: "h", Roles: []string{"USER"}})
	assert.ErrorContains(t, err, "db error: fk")
}

func TestGetUserByLogin_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(selectUserQ).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "email", "created_at"}).
			AddRow("u-1", "alice", "hash", nil, created))
	mock.ExpectQuery(selectRoleQ).WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("OPERATOR").AddRow("USER"))

	got, err := repo.GetUserByLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, &models.User{
		ID:           "u-1",
		UserName:     "alice",
		PasswordHash: "hash",
		Roles:        []string{"OPERATOR", "USER"},
		CreatedAt:    created,
	}, got)
}

func TestGetUserByLogin_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(selectUserQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByLogin(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetUserByLogin_RolesError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(selectUserQ).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "email", "created_at"}).
			AddRow("u-1", "alice", "hash", "a@city.io", time.Now()))
	mock.ExpectQuery(selectRoleQ).WillReturnError(errors.New("db err"))

	_, err := repo.GetUserByLogin(context.Background(), "alice")
	assert.ErrorContains(t, err, "db error: db err")
}

func TestUpdate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(updateUserQ).WithArgs("u-1", "new-hash", "new@city.io").
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &models.User{ID: "u-1", UserName: "alice", PasswordHash: "new-hash", Email: "new@city.io"}
	got, err := repo.Update(context.Background(), u)
	require.NoError(t, err)
	assert.Same(t, u, got)
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(updateUserQ).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), &models.User{ID: "u-404", PasswordHash: "h"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate_EmailTaken(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(updateUserQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Update(context.Background(), &models.User{ID: "u-1", PasswordHash: "h", Email: "dup@city.io"})
	assert.ErrorIs(t, err, common.ErrEmailTaken)
}

func TestSave_Dispatch(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertUserQ).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	u, err := repo.Save(context.Background(), &models.User{UserName: "carol", PasswordHash: "h"})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	mock.ExpectExec(updateUserQ).WithArgs(u.ID, "h2", nil).WillReturnResult(sqlmock.NewResult(0, 1))
	u.PasswordHash = "h2"
	_, err = repo.Save(context.Background(), u)
	require.NoError(t, err)
}
