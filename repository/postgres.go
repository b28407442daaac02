package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eurobank-ledger/logger"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresUnitOfWork opens one SERIALIZABLE database transaction per Do call
// and bounds row-lock waits with lock_timeout.
type PostgresUnitOfWork struct {
	DB          *sql.DB
	LockTimeout time.Duration
}

func NewPostgresUnitOfWork(db *sql.DB, lockTimeout time.Duration) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{DB: db, LockTimeout: lockTimeout}
}

type postgresTx struct {
	accounts *AccountRepository
	ledger   *LedgerRepository
	cards    *CardRepository
}

func (t *postgresTx) Accounts() IAccountRepository { return t.accounts }
func (t *postgresTx) Ledger() ILedgerRepository    { return t.ledger }
func (t *postgresTx) Cards() ICardRepository       { return t.cards }

func (u *PostgresUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return u.run(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
}

func (u *PostgresUnitOfWork) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return u.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}, fn)
}

func (u *PostgresUnitOfWork) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := u.DB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !opts.ReadOnly && u.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.LockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not set lock timeout: %w", err)
		}
	}

	if err := fn(ctx, &postgresTx{
		accounts: NewAccountRepository(tx),
		ledger:   NewLedgerRepository(tx),
		cards:    NewCardRepository(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Log.WithError(err).Error("Failed to commit transaction")
		return translate(fmt.Errorf("could not commit transaction: %w", err))
	}
	return nil
}

// SQLSTATE codes the store reacts to.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// translate maps driver errors onto the repository sentinels, keeping the
// original error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgLockNotAvailable:
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	case pgSerializationFailure, pgDeadlockDetected:
		logger.Log.WithFields(logrus.Fields{"sqlstate": pqErr.Code}).Warn("Concurrent update conflict")
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return false
}
