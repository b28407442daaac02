package repository

import (
	"context"
	"database/sql"
	"errors"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"

	"github.com/sirupsen/logrus"
)

type CardRepository struct {
	DB Querier
}

func NewCardRepository(db Querier) *CardRepository {
	return &CardRepository{DB: db}
}

const cardColumns = `id, account_id, masked_number, number_hash, holder, card_type, network, expires_on, status,
	daily_payment_limit, daily_withdrawal_limit, foreign_payment, foreign_withdrawal, online_payment, contactless,
	opposed, opposed_at, opposition_reason, created_at, updated_at`

func scanCard(row interface{ Scan(...interface{}) error }) (*model.Card, error) {
	var c model.Card
	err := row.Scan(&c.ID, &c.AccountID, &c.MaskedNumber, &c.NumberHash, &c.Holder, &c.Type, &c.Network, &c.ExpiresOn, &c.Status,
		&c.DailyPaymentLimit, &c.DailyWithdrawalLimit, &c.ForeignPayment, &c.ForeignWithdrawal, &c.OnlinePayment, &c.Contactless,
		&c.Opposed, &c.OpposedAt, &c.OppositionReason, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CardRepository) Create(ctx context.Context, card *model.Card) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": card.AccountID,
		"card_type":  card.Type,
		"network":    card.Network,
	})
	log.Info("Executing query to create a new card")

	query := `INSERT INTO cards (account_id, masked_number, number_hash, holder, card_type, network, expires_on, status,
		daily_payment_limit, daily_withdrawal_limit, foreign_payment, foreign_withdrawal, online_payment, contactless,
		opposed, opposition_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, FALSE, '', $15, $15) RETURNING id`
	err := r.DB.QueryRowContext(ctx, query,
		card.AccountID, card.MaskedNumber, card.NumberHash, card.Holder, card.Type, card.Network, dateOnly(card.ExpiresOn), card.Status,
		card.DailyPaymentLimit, card.DailyWithdrawalLimit, card.ForeignPayment, card.ForeignWithdrawal, card.OnlinePayment, card.Contactless,
		card.CreatedAt,
	).Scan(&card.ID)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("Card number already issued")
			return ErrDuplicateCard
		}
		log.WithError(err).Error("Failed to execute create card query")
		return translate(err)
	}
	card.UpdatedAt = card.CreatedAt
	return nil
}

func (r *CardRepository) get(ctx context.Context, id int64, forUpdate bool) (*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	card, err := scanCard(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).WithField("card_id", id).Error("Failed to execute get card query")
		return nil, translate(err)
	}
	return card, nil
}

func (r *CardRepository) Get(ctx context.Context, id int64) (*model.Card, error) {
	return r.get(ctx, id, false)
}

func (r *CardRepository) GetForUpdate(ctx context.Context, id int64) (*model.Card, error) {
	return r.get(ctx, id, true)
}

func (r *CardRepository) ListByAccount(ctx context.Context, accountID int64) ([]*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE account_id = $1 ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		logger.Log.WithError(err).WithField("account_id", accountID).Error("Failed to execute list cards query")
		return nil, translate(err)
	}
	defer rows.Close()

	var cards []*model.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// Update writes the mutable part of the card: status, limits, options and
// opposition. The caller must hold the card lock.
func (r *CardRepository) Update(ctx context.Context, card *model.Card) error {
	log := logger.Log.WithFields(logrus.Fields{"card_id": card.ID, "status": card.Status})
	log.Debug("Executing query to update card")

	query := `UPDATE cards SET status = $1, daily_payment_limit = $2, daily_withdrawal_limit = $3,
		foreign_payment = $4, foreign_withdrawal = $5, online_payment = $6, contactless = $7,
		opposed = $8, opposed_at = $9, opposition_reason = $10, updated_at = $11 WHERE id = $12`
	res, err := r.DB.ExecContext(ctx, query,
		card.Status, card.DailyPaymentLimit, card.DailyWithdrawalLimit,
		card.ForeignPayment, card.ForeignWithdrawal, card.OnlinePayment, card.Contactless,
		card.Opposed, card.OpposedAt, card.OppositionReason, card.UpdatedAt, card.ID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update card query")
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
