package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"
)

// IUserRepository defines the credential store used by the login guard.
type IUserRepository interface {
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	// IncrementFailedAttempts bumps the counter and returns its new value.
	IncrementFailedAttempts(ctx context.Context, userID int64) (int, error)
	Lock(ctx context.Context, userID int64, at time.Time) error
	RecordLogin(ctx context.Context, userID int64, at time.Time) error
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (login, password_hash, client_id, active, locked, failed_attempts) VALUES ($1, $2, $3, $4, FALSE, 0) RETURNING id, created_at`
	err := r.DB.QueryRowContext(ctx, query, user.Login, user.PasswordHash, user.ClientID, user.Active).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateLogin
		}
		logger.Log.WithError(err).WithField("login", user.Login).Error("Failed to execute create user query")
		return err
	}
	return nil
}

const userColumns = `id, login, client_id, password_hash, active, locked, failed_attempts, last_login_at, locked_at, created_at`

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	user := &model.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` = $1`
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Login, &user.ClientID, &user.PasswordHash, &user.Active, &user.Locked,
		&user.FailedAttempts, &user.LastLoginAt, &user.LockedAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).WithField(where, arg).Error("Failed to execute get user query")
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	return r.getOne(ctx, "login", login)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, userID int64) (int, error) {
	var attempts int
	query := `UPDATE users SET failed_attempts = failed_attempts + 1 WHERE id = $1 RETURNING failed_attempts`
	if err := r.DB.QueryRowContext(ctx, query, userID).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

func (r *UserRepository) Lock(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET locked = TRUE, locked_at = $1 WHERE id = $2`, at, userID)
	return err
}

// RecordLogin resets the failure counter after a successful authentication.
func (r *UserRepository) RecordLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET failed_attempts = 0, last_login_at = $1 WHERE id = $2`, at, userID)
	return err
}
