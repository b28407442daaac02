package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"
	"eurobank-ledger/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrCardNotFound       = errors.New("card not found")
	ErrCardOpposed        = errors.New("card is under opposition")
	ErrCardUnavailable    = errors.New("card is not active")
	ErrInvalidCardRequest = errors.New("invalid card request")
)

var (
	DefaultDailyPaymentLimit    = decimal.NewFromInt(1500)
	DefaultDailyWithdrawalLimit = decimal.NewFromInt(500)
)

const (
	cardValidityYears     = 3
	maxCardNumberAttempts = 5
)

// CardService issues cards and drives their status: ACTIVE and BLOCKED swap
// back and forth, OPPOSED is final.
type CardService struct {
	uow   repository.UnitOfWork
	clock Clock
}

func NewCardService(uow repository.UnitOfWork, clock Clock) *CardService {
	return &CardService{uow: uow, clock: clock}
}

// Issue attaches a new ACTIVE card to an ACTIVE account. Only the mask and
// the hash of the card number are kept.
func (s *CardService) Issue(ctx context.Context, req model.IssueCardRequest) (*model.Card, error) {
	log := logger.Log.WithFields(logrus.Fields{"iban": req.IBAN, "card_type": req.Type, "network": req.Network})

	var card *model.Card
	var err error
	for i := 0; i < maxCardNumberAttempts; i++ {
		var pan string
		pan, err = newCardNumber(req.Network)
		if err != nil {
			return nil, fmt.Errorf("could not generate card number: %w", err)
		}
		now := s.clock.Now()
		card = &model.Card{
			MaskedNumber:         maskCardNumber(pan),
			NumberHash:           hashToken(pan),
			Holder:               strings.ToUpper(req.Holder),
			Type:                 req.Type,
			Network:              req.Network,
			ExpiresOn:            cardExpiry(s.clock.Today()),
			Status:               model.CardStatusActive,
			DailyPaymentLimit:    DefaultDailyPaymentLimit,
			DailyWithdrawalLimit: DefaultDailyWithdrawalLimit,
			ForeignPayment:       true,
			ForeignWithdrawal:    true,
			OnlinePayment:        true,
			Contactless:          true,
			CreatedAt:            now,
		}
		err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
			account, err := tx.Accounts().Get(ctx, req.IBAN)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%w: %s", ErrAccountNotFound, req.IBAN)
				}
				return err
			}
			if account.Status != model.AccountStatusActive {
				return fmt.Errorf("%w: account is %s", ErrAccountUnavailable, account.Status)
			}
			card.AccountID = account.ID
			return tx.Cards().Create(ctx, card)
		})
		if !errors.Is(err, repository.ErrDuplicateCard) {
			break
		}
		log.Warn("Card number already issued, generating a new one")
	}
	if err != nil {
		log.WithError(err).Warn("Failed to issue card")
		return nil, err
	}

	log.WithFields(logrus.Fields{"card_id": card.ID, "masked_number": card.MaskedNumber}).Info("Card issued")
	return card, nil
}

func (s *CardService) Get(ctx context.Context, id int64) (*model.Card, error) {
	var card *model.Card
	err := s.uow.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		card, err = tx.Cards().Get(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrCardNotFound, id)
	}
	return card, err
}

func (s *CardService) ListByAccount(ctx context.Context, iban string) ([]*model.Card, error) {
	cards := []*model.Card{}
	err := s.uow.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		account, err := tx.Accounts().Get(ctx, iban)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrAccountNotFound, iban)
			}
			return err
		}
		found, err := tx.Cards().ListByAccount(ctx, account.ID)
		if found != nil {
			cards = found
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// Oppose permanently stops the card. The reason is mandatory.
func (s *CardService) Oppose(ctx context.Context, req model.OppositionRequest) (*model.Card, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: opposition reason is required", ErrInvalidCardRequest)
	}
	card, err := s.mutate(ctx, req.CardID, func(card *model.Card, now time.Time) error {
		if card.Opposed || card.Status == model.CardStatusOpposed {
			return fmt.Errorf("%w: already opposed", ErrCardOpposed)
		}
		card.Status = model.CardStatusOpposed
		card.Opposed = true
		card.OpposedAt = &now
		card.OppositionReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{"card_id": card.ID, "masked_number": card.MaskedNumber, "reason": reason}).Warn("Card opposed")
	return card, nil
}

// Block suspends an ACTIVE card. Blocking a blocked card is a no-op.
func (s *CardService) Block(ctx context.Context, id int64) (*model.Card, error) {
	card, err := s.mutate(ctx, id, func(card *model.Card, now time.Time) error {
		switch card.Status {
		case model.CardStatusActive, model.CardStatusBlocked:
			card.Status = model.CardStatusBlocked
			return nil
		case model.CardStatusOpposed:
			return ErrCardOpposed
		default:
			return fmt.Errorf("%w: card is %s", ErrCardUnavailable, card.Status)
		}
	})
	if err != nil {
		return nil, err
	}
	logger.Log.WithField("card_id", card.ID).Info("Card blocked")
	return card, nil
}

// Unblock reactivates a BLOCKED card. An opposed card cannot be unblocked.
func (s *CardService) Unblock(ctx context.Context, id int64) (*model.Card, error) {
	card, err := s.mutate(ctx, id, func(card *model.Card, now time.Time) error {
		switch card.Status {
		case model.CardStatusBlocked, model.CardStatusActive:
			card.Status = model.CardStatusActive
			return nil
		case model.CardStatusOpposed:
			return ErrCardOpposed
		default:
			return fmt.Errorf("%w: card is %s", ErrCardUnavailable, card.Status)
		}
	})
	if err != nil {
		return nil, err
	}
	logger.Log.WithField("card_id", card.ID).Info("Card unblocked")
	return card, nil
}

// UpdateOptions changes the options and limits of an ACTIVE card; nil fields
// are left as they are.
func (s *CardService) UpdateOptions(ctx context.Context, req model.CardOptionsRequest) (*model.Card, error) {
	for _, limit := range []*decimal.Decimal{req.DailyPaymentLimit, req.DailyWithdrawalLimit} {
		if limit != nil && limit.IsNegative() {
			return nil, fmt.Errorf("%w: limits cannot be negative", ErrInvalidCardRequest)
		}
	}
	return s.mutate(ctx, req.CardID, func(card *model.Card, now time.Time) error {
		if card.Status != model.CardStatusActive {
			if card.Status == model.CardStatusOpposed {
				return ErrCardOpposed
			}
			return fmt.Errorf("%w: card is %s", ErrCardUnavailable, card.Status)
		}
		setBool(&card.ForeignPayment, req.ForeignPayment)
		setBool(&card.ForeignWithdrawal, req.ForeignWithdrawal)
		setBool(&card.OnlinePayment, req.OnlinePayment)
		setBool(&card.Contactless, req.Contactless)
		if req.DailyPaymentLimit != nil {
			card.DailyPaymentLimit = *req.DailyPaymentLimit
		}
		if req.DailyWithdrawalLimit != nil {
			card.DailyWithdrawalLimit = *req.DailyWithdrawalLimit
		}
		return nil
	})
}

// mutate applies change to the locked card and writes it back.
func (s *CardService) mutate(ctx context.Context, id int64, change func(card *model.Card, now time.Time) error) (*model.Card, error) {
	var card *model.Card
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		card, err = tx.Cards().GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %d", ErrCardNotFound, id)
			}
			return err
		}
		now := s.clock.Now()
		if err := change(card, now); err != nil {
			return err
		}
		card.UpdatedAt = now
		return tx.Cards().Update(ctx, card)
	})
	if err != nil {
		if errors.Is(err, repository.ErrLockTimeout) {
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
		return nil, err
	}
	return card, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// cardExpiry is the last day of the issue month, three years on.
func cardExpiry(today time.Time) time.Time {
	y, m, _ := today.Date()
	return time.Date(y+cardValidityYears, m+1, 0, 0, 0, 0, 0, today.Location())
}

var cardPrefixes = map[model.CardNetwork]string{
	model.CardNetworkVisa:       "4",
	model.CardNetworkMastercard: "51",
	model.CardNetworkCB:         "4973",
}

// newCardNumber returns a random 16 digit number with the network prefix and
// a Luhn check digit.
func newCardNumber(network model.CardNetwork) (string, error) {
	prefix, ok := cardPrefixes[network]
	if !ok {
		return "", fmt.Errorf("%w: unknown network %q", ErrInvalidCardRequest, network)
	}
	var sb strings.Builder
	sb.WriteString(prefix)
	for sb.Len() < 15 {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	body := sb.String()
	return body + luhnDigit(body), nil
}

// luhnDigit computes the check digit to append to digits.
func luhnDigit(digits string) string {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return string(rune('0' + (10-sum%10)%10))
}

func luhnValid(number string) bool {
	if len(number) < 2 {
		return false
	}
	return luhnDigit(number[:len(number)-1]) == number[len(number)-1:]
}

func maskCardNumber(pan string) string {
	return "XXXX XXXX XXXX " + pan[len(pan)-4:]
}
