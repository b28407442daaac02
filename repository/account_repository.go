package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type AccountRepository struct {
	DB Querier
}

func NewAccountRepository(db Querier) *AccountRepository {
	return &AccountRepository{DB: db}
}

const accountColumns = `id, client_id, account_number, iban, bic, holder_name, account_type, currency,
	balance, available_balance, overdraft_limit, status, opened_on, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*model.Account, error) {
	var acc model.Account
	err := row.Scan(&acc.ID, &acc.ClientID, &acc.AccountNumber, &acc.IBAN, &acc.BIC, &acc.HolderName, &acc.Type, &acc.Currency,
		&acc.Balance, &acc.AvailableBalance, &acc.OverdraftLimit, &acc.Status, &acc.OpenedOn, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetForUpdate reads the account by IBAN and locks its row.
func (r *AccountRepository) GetForUpdate(ctx context.Context, iban string) (*model.Account, error) {
	log := logger.Log.WithField("iban", iban)
	log.Debug("Executing query to get account for update")

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE iban = $1 FOR UPDATE`
	account, err := scanAccount(r.DB.QueryRowContext(ctx, query, iban))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("Account not found for update")
			return nil, ErrNotFound
		}
		log.WithError(err).Error("Failed to execute get account for update query")
		return nil, translate(err)
	}
	return account, nil
}

// Get reads the account by IBAN without locking.
func (r *AccountRepository) Get(ctx context.Context, iban string) (*model.Account, error) {
	log := logger.Log.WithField("iban", iban)
	log.Debug("Executing query to get account")

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE iban = $1`
	account, err := scanAccount(r.DB.QueryRowContext(ctx, query, iban))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.WithError(err).Error("Failed to execute get account query")
		return nil, translate(err)
	}
	return account, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, accountID int64, balance, available decimal.Decimal, at time.Time) (int64, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id":        accountID,
		"new_balance":       balance.String(),
		"available_balance": available.String(),
	})
	log.Debug("Executing query to update account balance")

	query := `UPDATE accounts SET balance = $1, available_balance = $2, updated_at = $3 WHERE id = $4`
	res, err := r.DB.ExecContext(ctx, query, balance, available, at, accountID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update account balance query")
		return 0, translate(err)
	}
	return res.RowsAffected()
}

// Create inserts a new account and fills its generated fields.
func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	log := logger.Log.WithFields(logrus.Fields{
		"client_id":      account.ClientID,
		"account_number": account.AccountNumber,
		"currency":       account.Currency,
	})
	log.Info("Executing query to create a new account")

	query := `INSERT INTO accounts (client_id, account_number, iban, bic, holder_name, account_type, currency,
		balance, available_balance, overdraft_limit, status, opened_on, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13) RETURNING id`
	err := r.DB.QueryRowContext(ctx, query,
		account.ClientID, account.AccountNumber, account.IBAN, account.BIC, account.HolderName, account.Type, account.Currency,
		account.Balance, account.AvailableBalance, account.OverdraftLimit, account.Status, dateOnly(account.OpenedOn), account.CreatedAt,
	).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("Account number or IBAN already taken")
			return ErrDuplicateAccount
		}
		log.WithError(err).Error("Failed to execute create account query")
		return translate(err)
	}
	account.UpdatedAt = account.CreatedAt
	return nil
}

// ListByClient returns every account of the client, oldest first.
func (r *AccountRepository) ListByClient(ctx context.Context, clientID int64) ([]*model.Account, error) {
	log := logger.Log.WithField("client_id", clientID)
	log.Debug("Executing query to list client accounts")

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE client_id = $1 ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, clientID)
	if err != nil {
		log.WithError(err).Error("Failed to execute list client accounts query")
		return nil, translate(err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan account row")
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) SumActiveBalanceByClient(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE client_id = $1 AND status = $2`
	if err := r.DB.QueryRowContext(ctx, query, clientID, model.AccountStatusActive).Scan(&total); err != nil {
		logger.Log.WithError(err).WithField("client_id", clientID).Error("Failed to execute global balance query")
		return decimal.Zero, translate(err)
	}
	return total, nil
}
