package service

import (
	"context"
	"errors"
	"fmt"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"
	"eurobank-ledger/repository"

	"github.com/sirupsen/logrus"
)

const defaultHistoryPageSize = 20

// HistoryService pages through the ledger entries of one account.
type HistoryService struct {
	uow   repository.UnitOfWork
	clock Clock
}

func NewHistoryService(uow repository.UnitOfWork, clock Clock) *HistoryService {
	return &HistoryService{uow: uow, clock: clock}
}

// List returns the entries matching q, newest first. Without dates it covers
// the last three months up to today.
func (s *HistoryService) List(ctx context.Context, q model.HistoryQuery) (*model.Page[*model.LedgerEntry], error) {
	to := q.To
	if to.IsZero() {
		to = s.clock.Today()
	}
	from := q.From
	if from.IsZero() {
		from = to.AddDate(0, -3, 0)
	}
	size := q.Size
	if size <= 0 {
		size = defaultHistoryPageSize
	}

	log := logger.Log.WithFields(logrus.Fields{
		"iban": q.IBAN,
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
		"page": q.Page,
	})
	log.Info("Listing account history")

	var entries []*model.LedgerEntry
	var total int64
	err := s.uow.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		account, err := tx.Accounts().Get(ctx, q.IBAN)
		if err != nil {
			return err
		}
		entries, total, err = tx.Ledger().ListByAccount(ctx, repository.EntryFilter{
			AccountID:     account.ID,
			From:          from,
			To:            to,
			OperationType: q.OperationType,
			Limit:         size,
			Offset:        q.Page * size,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, q.IBAN)
		}
		log.WithError(err).Error("Failed to list account history")
		return nil, err
	}

	if entries == nil {
		entries = []*model.LedgerEntry{}
	}
	return &model.Page[*model.LedgerEntry]{
		Content:       entries,
		Page:          q.Page,
		Size:          size,
		TotalElements: total,
		TotalPages:    int((total + int64(size) - 1) / int64(size)),
	}, nil
}
