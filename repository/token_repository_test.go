package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"eurobank-ledger/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTokenRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("create", func(t *testing.T) {
		token := &model.RefreshToken{UserID: 3, TokenHash: "h1", ExpiresAt: now.Add(time.Hour)}
		dbMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO refresh_tokens (user_id, token_hash, expires_at)")).
			WithArgs(int64(3), "h1", now.Add(time.Hour)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, now))

		require.NoError(t, repo.Create(ctx, token))
		assert.Equal(t, int64(1), token.ID)
		assert.Equal(t, now, token.CreatedAt)
	})

	t.Run("get by hash", func(t *testing.T) {
		dbMock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash = $1")).WithArgs("h1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}).AddRow(1, 3, "h1", now, now))

		token, err := repo.GetByTokenHash(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), token.UserID)
	})

	t.Run("unknown hash", func(t *testing.T) {
		dbMock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).WithArgs("nope").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}))

		_, err := repo.GetByTokenHash(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete by user", func(t *testing.T) {
		dbMock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id = $1")).WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 2))

		n, err := repo.DeleteByUserID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestUserRepository_GetByID(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "login", "client_id", "password_hash", "active", "locked", "failed_attempts",
			"last_login_at", "locked_at", "created_at"}).AddRow(3, "alice", 7, "hash", true, false, 0, nil, nil, now))

	user, err := NewUserRepository(db).GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Login)
	assert.Equal(t, int64(7), user.ClientID)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
