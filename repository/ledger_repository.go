package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type LedgerRepository struct {
	DB Querier
}

func NewLedgerRepository(db Querier) *LedgerRepository {
	return &LedgerRepository{DB: db}
}

const entryColumns = `id, account_id, reference, operation_type, amount, currency, direction, label, motif,
	operation_date, value_date, balance_before, balance_after, counterparty_iban, counterparty_name, status, created_by, created_at`

// Append inserts an immutable ledger entry. A reference collision is reported
// as ErrDuplicateReference without aborting the surrounding transaction.
func (r *LedgerRepository) Append(ctx context.Context, entry *model.LedgerEntry) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id":     entry.AccountID,
		"reference":      entry.Reference,
		"operation_type": entry.OperationType,
		"amount":         entry.Amount.String(),
	})
	log.Info("Executing query to append a ledger entry")

	query := `INSERT INTO ledger_entries (account_id, reference, operation_type, amount, currency, direction, label, motif,
		operation_date, value_date, balance_before, balance_after, counterparty_iban, counterparty_name, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (reference) DO NOTHING
		RETURNING id, created_at`
	err := r.DB.QueryRowContext(ctx, query,
		entry.AccountID, entry.Reference, entry.OperationType, entry.Amount, entry.Currency, entry.Direction, entry.Label, entry.Motif,
		dateOnly(entry.OperationDate), dateOnly(entry.ValueDate), entry.BalanceBefore, entry.BalanceAfter,
		entry.CounterpartyIBAN, entry.CounterpartyName, entry.Status, entry.CreatedBy,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Ledger reference already exists")
			return ErrDuplicateReference
		}
		log.WithError(err).Error("Failed to execute append ledger entry query")
		return translate(err)
	}
	return nil
}

// CountExecutedByTypeAndDate counts EXECUTED entries of the given types booked
// on the account for one operation date.
func (r *LedgerRepository) CountExecutedByTypeAndDate(ctx context.Context, accountID int64, date time.Time, types ...model.OperationType) (int, error) {
	log := logger.Log.WithFields(logrus.Fields{"account_id": accountID, "date": dateOnly(date).Format("2006-01-02")})
	log.Debug("Executing query to count executed entries")

	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	query := `SELECT COUNT(*) FROM ledger_entries
		WHERE account_id = $1 AND operation_date = $2 AND operation_type = ANY($3) AND status = $4`
	var count int
	err := r.DB.QueryRowContext(ctx, query, accountID, dateOnly(date), pq.Array(names), model.EntryStatusExecuted).Scan(&count)
	if err != nil {
		log.WithError(err).Error("Failed to execute count entries query")
		return 0, translate(err)
	}
	return count, nil
}

// ListByAccount returns one page of the account's entries, newest first,
// together with the total number of matching entries.
func (r *LedgerRepository) ListByAccount(ctx context.Context, filter EntryFilter) ([]*model.LedgerEntry, int64, error) {
	log := logger.Log.WithField("account_id", filter.AccountID)
	log.Info("Executing query to list ledger entries by account")

	where := []string{"account_id = $1", "operation_date >= $2", "operation_date <= $3"}
	args := []interface{}{filter.AccountID, dateOnly(filter.From), dateOnly(filter.To)}
	if filter.OperationType != "" {
		args = append(args, filter.OperationType)
		where = append(where, fmt.Sprintf("operation_type = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE `+cond, args...).Scan(&total); err != nil {
		log.WithError(err).Error("Failed to execute count ledger entries query")
		return nil, 0, translate(err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE %s ORDER BY operation_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		entryColumns, cond, len(args)-1, len(args))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("Failed to execute list ledger entries query")
		return nil, 0, translate(err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Reference, &e.OperationType, &e.Amount, &e.Currency, &e.Direction, &e.Label, &e.Motif,
			&e.OperationDate, &e.ValueDate, &e.BalanceBefore, &e.BalanceAfter, &e.CounterpartyIBAN, &e.CounterpartyName,
			&e.Status, &e.CreatedBy, &e.CreatedAt); err != nil {
			log.WithError(err).Error("Failed to scan ledger entry row")
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
