package repository

import (
	"context"
	"errors"
	"time"

	"eurobank-ledger/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateReference = errors.New("ledger reference already exists")
	ErrDuplicateAccount   = errors.New("account number or iban already exists")
	ErrDuplicateLogin     = errors.New("login already exists")
	ErrDuplicateCard      = errors.New("card number already exists")
	ErrDuplicateClient    = errors.New("client number or email already exists")
	ErrLockTimeout        = errors.New("timed out waiting for row lock")
	// ErrConflict marks a serialization failure or deadlock; the whole unit of
	// work may be retried.
	ErrConflict = errors.New("concurrent update conflict")
)

// IAccountRepository defines the account store contract.
type IAccountRepository interface {
	// GetForUpdate reads the account and holds an exclusive lock on its row
	// until the enclosing unit of work ends.
	GetForUpdate(ctx context.Context, iban string) (*model.Account, error)
	Get(ctx context.Context, iban string) (*model.Account, error)
	// UpdateBalance is a blind write of both balances; the caller must hold
	// the row lock.
	UpdateBalance(ctx context.Context, accountID int64, balance, available decimal.Decimal, at time.Time) (int64, error)
	Create(ctx context.Context, account *model.Account) error
	ListByClient(ctx context.Context, clientID int64) ([]*model.Account, error)
	// SumActiveBalanceByClient adds up the balances of the client's ACTIVE
	// accounts; no account yields zero.
	SumActiveBalanceByClient(ctx context.Context, clientID int64) (decimal.Decimal, error)
}

// ICardRepository defines the card store contract.
type ICardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	Get(ctx context.Context, id int64) (*model.Card, error)
	// GetForUpdate reads the card and locks it until the unit of work ends.
	GetForUpdate(ctx context.Context, id int64) (*model.Card, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*model.Card, error)
	Update(ctx context.Context, card *model.Card) error
}

// ILedgerRepository defines the append-only ledger contract.
type ILedgerRepository interface {
	Append(ctx context.Context, entry *model.LedgerEntry) error
	CountExecutedByTypeAndDate(ctx context.Context, accountID int64, date time.Time, types ...model.OperationType) (int, error)
	ListByAccount(ctx context.Context, filter EntryFilter) ([]*model.LedgerEntry, int64, error)
}

// EntryFilter selects ledger entries of one account, newest first.
type EntryFilter struct {
	AccountID     int64
	From          time.Time
	To            time.Time
	OperationType model.OperationType
	Limit         int
	Offset        int
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Accounts() IAccountRepository
	Ledger() ILedgerRepository
	Cards() ICardRepository
}

// UnitOfWork runs fn atomically: every write made through tx is committed
// when fn returns nil and discarded otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
