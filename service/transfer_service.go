package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"
	"eurobank-ledger/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidTransfer    = errors.New("invalid transfer")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountUnavailable = errors.New("account is not open for transfers")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrLimitExceeded      = errors.New("daily transfer limit reached")
	ErrLockTimeout        = errors.New("account is busy, try again later")
	ErrCurrencyMismatch   = fmt.Errorf("%w: currency mismatch between accounts", ErrInvalidTransfer)
)

const maxReferenceAttempts = 5

// TransferConfig carries the business limits applied by the executor.
type TransferConfig struct {
	InstantCeiling decimal.Decimal
	DailyLimit     int
	// MaxRetries is the number of extra attempts after a serialization
	// failure or deadlock.
	MaxRetries int
	Backoff    time.Duration
}

func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		InstantCeiling: decimal.RequireFromString("15000.00"),
		DailyLimit:     10,
		MaxRetries:     3,
		Backoff:        10 * time.Millisecond,
	}
}

// TransferService executes funds transfers: it debits the sender, credits a
// same-bank receiver and appends the ledger entries in one unit of work.
type TransferService struct {
	uow   repository.UnitOfWork
	clock Clock
	refs  ReferenceGenerator
	cfg   TransferConfig
	cache accountCache
}

func NewTransferService(uow repository.UnitOfWork, clock Clock, refs ReferenceGenerator, cfg TransferConfig, cache ICacheClient) *TransferService {
	return &TransferService{
		uow:   uow,
		clock: clock,
		refs:  refs,
		cfg:   cfg,
		cache: accountCache{client: cache},
	}
}

// Execute validates req, then runs the transfer and returns the sender's
// DEBIT entry.
func (s *TransferService) Execute(ctx context.Context, req model.TransferRequest, actingUserID int64) (*model.LedgerEntry, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"sender_iban":   req.SenderIBAN,
		"receiver_iban": req.ReceiverIBAN,
		"amount":        req.Amount.String(),
		"instant":       req.Instant,
		"user_id":       actingUserID,
	})

	if err := s.validate(req); err != nil {
		log.WithError(err).Warn("Transfer rejected by validation")
		return nil, err
	}

	log.Info("Starting money transfer process")

	var debit *model.LedgerEntry
	var err error
	for attempt := 0; ; attempt++ {
		err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
			entry, err := s.execute(ctx, tx, req, actingUserID)
			debit = entry
			return err
		})
		if !errors.Is(err, repository.ErrConflict) || attempt >= s.cfg.MaxRetries {
			break
		}
		log.WithField("attempt", attempt+1).Warn("Transfer conflicted with a concurrent update, retrying")
		if werr := wait(ctx, time.Duration(attempt+1)*s.cfg.Backoff); werr != nil {
			return nil, werr
		}
	}

	if err != nil {
		if errors.Is(err, repository.ErrLockTimeout) {
			err = fmt.Errorf("%w: %w", ErrLockTimeout, err)
		}
		log.WithError(err).Warn("Transfer failed")
		return nil, err
	}

	s.cache.invalidate(ctx, req.SenderIBAN, req.ReceiverIBAN)
	log.WithField("reference", debit.Reference).Info("Transfer completed successfully")
	return debit, nil
}

func (s *TransferService) validate(req model.TransferRequest) error {
	if req.SenderIBAN == req.ReceiverIBAN {
		return fmt.Errorf("%w: sender and receiver accounts must differ", ErrInvalidTransfer)
	}
	if req.Instant && req.Amount.GreaterThan(s.cfg.InstantCeiling) {
		return fmt.Errorf("%w: instant transfers are limited to %s", ErrInvalidTransfer, s.cfg.InstantCeiling.StringFixed(2))
	}
	if req.ExecutionDate != nil {
		today := s.clock.Today()
		y, m, d := req.ExecutionDate.In(today.Location()).Date()
		if time.Date(y, m, d, 0, 0, 0, 0, today.Location()).Before(today) {
			return fmt.Errorf("%w: execution date is in the past", ErrInvalidTransfer)
		}
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) {
		return fmt.Errorf("%w: amount must be positive with at most two decimals", ErrInvalidTransfer)
	}
	return nil
}

func (s *TransferService) execute(ctx context.Context, tx repository.Tx, req model.TransferRequest, actingUserID int64) (*model.LedgerEntry, error) {
	sender, receiver, err := s.lockParties(ctx, tx, req)
	if err != nil {
		return nil, err
	}
	if sender.Status != model.AccountStatusActive {
		return nil, fmt.Errorf("%w: sender account is %s", ErrAccountUnavailable, sender.Status)
	}

	if sender.Spendable().LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	today := s.clock.Today()
	sentToday, err := tx.Ledger().CountExecutedByTypeAndDate(ctx, sender.ID, today, model.OutboundTransferTypes...)
	if err != nil {
		return nil, fmt.Errorf("could not count today's transfers: %w", err)
	}
	if sentToday >= s.cfg.DailyLimit {
		return nil, fmt.Errorf("%w: %d transfers already executed today", ErrLimitExceeded, sentToday)
	}

	now := s.clock.Now()
	newBalance := sender.Balance.Sub(req.Amount)
	newAvailable := sender.AvailableBalance.Sub(req.Amount)
	if _, err := tx.Accounts().UpdateBalance(ctx, sender.ID, newBalance, newAvailable, now); err != nil {
		return nil, fmt.Errorf("could not update sender balance: %w", err)
	}

	opType, valueDate := model.OperationTransferSent, today.AddDate(0, 0, 1)
	if req.Instant {
		opType, valueDate = model.OperationInstantTransfer, today
	}
	debit := &model.LedgerEntry{
		AccountID:        sender.ID,
		OperationType:    opType,
		Amount:           req.Amount,
		Currency:         sender.Currency,
		Direction:        model.DirectionDebit,
		Label:            "Transfer to " + req.ReceiverName,
		Motif:            req.Motif,
		OperationDate:    today,
		ValueDate:        valueDate,
		BalanceBefore:    sender.Balance,
		BalanceAfter:     newBalance,
		CounterpartyIBAN: req.ReceiverIBAN,
		CounterpartyName: req.ReceiverName,
		Status:           model.EntryStatusExecuted,
		CreatedBy:        actingUserID,
	}
	if err := s.appendEntry(ctx, tx, debit, now); err != nil {
		return nil, fmt.Errorf("could not append debit entry: %w", err)
	}

	if receiver == nil {
		logger.Log.WithField("receiver_iban", req.ReceiverIBAN).Info("Receiver is external, no credit leg")
		return debit, nil
	}
	if err := s.credit(ctx, tx, sender, receiver, req, actingUserID, today, now); err != nil {
		return nil, err
	}
	return debit, nil
}

// lockParties locks the sender and, when held by this bank, the receiver.
// Both rows are locked in ascending account id order so that two opposite
// transfers between the same accounts queue instead of deadlocking. The
// receiver is nil for an external IBAN.
func (s *TransferService) lockParties(ctx context.Context, tx repository.Tx, req model.TransferRequest) (*model.Account, *model.Account, error) {
	senderRow, err := tx.Accounts().Get(ctx, req.SenderIBAN)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrAccountNotFound, req.SenderIBAN)
		}
		return nil, nil, err
	}
	receiverRow, err := tx.Accounts().Get(ctx, req.ReceiverIBAN)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}

	ibans := []string{req.SenderIBAN}
	if receiverRow != nil {
		ibans = append(ibans, req.ReceiverIBAN)
		if receiverRow.ID < senderRow.ID {
			ibans[0], ibans[1] = ibans[1], ibans[0]
		}
	}

	locked := make(map[string]*model.Account, len(ibans))
	for _, iban := range ibans {
		account, err := tx.Accounts().GetForUpdate(ctx, iban)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: %s", ErrAccountNotFound, iban)
			}
			return nil, nil, err
		}
		locked[iban] = account
	}
	return locked[req.SenderIBAN], locked[req.ReceiverIBAN], nil
}

// credit books the receiving leg on the already locked receiver.
func (s *TransferService) credit(ctx context.Context, tx repository.Tx, sender, receiver *model.Account, req model.TransferRequest, actingUserID int64, today, now time.Time) error {
	if receiver.Status == model.AccountStatusClosed {
		return fmt.Errorf("%w: receiver account is closed", ErrAccountUnavailable)
	}
	if receiver.Currency != sender.Currency {
		return ErrCurrencyMismatch
	}

	newBalance := receiver.Balance.Add(req.Amount)
	newAvailable := receiver.AvailableBalance.Add(req.Amount)
	if _, err := tx.Accounts().UpdateBalance(ctx, receiver.ID, newBalance, newAvailable, now); err != nil {
		return fmt.Errorf("could not update receiver balance: %w", err)
	}

	entry := &model.LedgerEntry{
		AccountID:        receiver.ID,
		OperationType:    model.OperationTransferReceived,
		Amount:           req.Amount,
		Currency:         receiver.Currency,
		Direction:        model.DirectionCredit,
		Label:            "Transfer from " + sender.HolderName,
		Motif:            req.Motif,
		OperationDate:    today,
		ValueDate:        today,
		BalanceBefore:    receiver.Balance,
		BalanceAfter:     newBalance,
		CounterpartyIBAN: sender.IBAN,
		CounterpartyName: sender.HolderName,
		Status:           model.EntryStatusExecuted,
		CreatedBy:        actingUserID,
	}
	if err := s.appendEntry(ctx, tx, entry, now); err != nil {
		return fmt.Errorf("could not append credit entry: %w", err)
	}
	return nil
}

// appendEntry assigns a fresh reference and appends entry, drawing a new
// reference when the store reports a collision.
func (s *TransferService) appendEntry(ctx context.Context, tx repository.Tx, entry *model.LedgerEntry, now time.Time) error {
	var err error
	for i := 0; i < maxReferenceAttempts; i++ {
		entry.Reference = s.refs.Next(now)
		err = tx.Ledger().Append(ctx, entry)
		if !errors.Is(err, repository.ErrDuplicateReference) {
			return err
		}
		logger.Log.WithField("reference", entry.Reference).Warn("Reference collision, generating a new one")
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
