package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lexpertease/internal/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock
}

var sessionColumns = []string{"id", "user_id", "token", "type", "expires_at", "is_revoked", "user_agent", "ip_address", "created_at", "updated_at"}

func TestSessionRepository_Consume(t *testing.T) {
	now := time.Now()
	update := regexp.QuoteMeta("UPDATE `sessions` SET")
	selectByToken := regexp.QuoteMeta("SELECT * FROM `sessions` WHERE token = ?")

	t.Run("winner gets the session", func(t *testing.T) {
		gdb, mock := newMockDB(t)
		repo := NewSessionRepository(gdb)

		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(selectByToken).WillReturnRows(sqlmock.NewRows(sessionColumns).
			AddRow("s1", "u1", "tok", "refresh", now.Add(time.Hour), true, "agent", "127.0.0.1", now, now))

		session, err := repo.Consume(context.Background(), "tok", model.SessionRefresh, now)
		require.NoError(t, err)
		assert.Equal(t, "u1", session.UserID)
		assert.True(t, session.IsRevoked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loser sees not found", func(t *testing.T) {
		gdb, mock := newMockDB(t)
		repo := NewSessionRepository(gdb)

		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.Consume(context.Background(), "tok", model.SessionRefresh, now)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver failure", func(t *testing.T) {
		gdb, mock := newMockDB(t)
		repo := NewSessionRepository(gdb)

		mock.ExpectExec(update).WillReturnError(errors.New("connection reset"))

		_, err := repo.Consume(context.Background(), "tok", model.SessionRefresh, now)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestSessionRepository_PurgeExpired(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewSessionRepository(gdb)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `sessions` WHERE expires_at <= ?")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.PurgeExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordResetRepository_Consume(t *testing.T) {
	now := time.Now()
	gdb, mock := newMockDB(t)
	repo := NewPasswordResetRepository(gdb)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `password_resets` SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Consume(context.Background(), "spent", now)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmail(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewUserRepository(gdb)
	query := regexp.QuoteMeta("SELECT * FROM `users` WHERE email = ?")
	columns := []string{"id", "first_name", "last_name", "email", "phone", "password_hash", "role", "is_verified"}

	mock.ExpectQuery(query).WithArgs("ada@example.com", 1).
		WillReturnRows(sqlmock.NewRows(columns).AddRow("u1", "Ada", "Lovelace", "ada@example.com", "+15551234567", "hash", "client", true))
	mock.ExpectQuery(query).WithArgs("nobody@example.com", 1).
		WillReturnRows(sqlmock.NewRows(columns))

	user, err := repo.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, model.RoleClient, user.Role)

	_, err = repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewUserRepository(gdb)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users`")).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'ada@example.com' for key 'users.email'"))

	err := repo.Create(context.Background(), &model.User{Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePasswordMissingUser(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewUserRepository(gdb)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `users` SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), "missing", "hash")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateGormError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "record not found", err: gorm.ErrRecordNotFound, want: ErrNotFound},
		{name: "duplicated key", err: gorm.ErrDuplicatedKey, want: ErrDuplicate},
		{name: "postgres unique", err: errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email"`), want: ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateGormError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
