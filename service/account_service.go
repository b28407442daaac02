package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"
	"eurobank-ledger/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	BankCode        = "30001"
	BranchCode      = "00001"
	BIC             = "EABORFRPP"
	DefaultCurrency = "EUR"

	maxAccountNumberAttempts = 5
)

var (
	ErrInvalidAccountRequest = errors.New("invalid account request")
	ErrInvalidIBAN           = errors.New("invalid iban")
)

// AccountService opens accounts and serves account lookups, using Redis as a
// cache-aside layer in front of the store when a cache client is given.
type AccountService struct {
	uow   repository.UnitOfWork
	clock Clock
	cache accountCache
}

func NewAccountService(uow repository.UnitOfWork, clock Clock, cache ICacheClient) *AccountService {
	return &AccountService{
		uow:   uow,
		clock: clock,
		cache: accountCache{client: cache},
	}
}

// Open creates an ACTIVE account with zero balances, a fresh account number
// and the matching French IBAN.
func (s *AccountService) Open(ctx context.Context, req model.OpenAccountRequest) (*model.Account, error) {
	log := logger.Log.WithFields(logrus.Fields{"client_id": req.ClientID, "type": req.Type})

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	overdraft := decimal.Zero
	if req.OverdraftLimit != nil {
		overdraft = *req.OverdraftLimit
	}
	if overdraft.IsNegative() {
		return nil, fmt.Errorf("%w: overdraft limit cannot be negative", ErrInvalidAccountRequest)
	}

	var account *model.Account
	var err error
	for i := 0; i < maxAccountNumberAttempts; i++ {
		now := s.clock.Now()
		number := newAccountNumber(now)
		iban, ierr := GenerateIBAN(BankCode, BranchCode, number)
		if ierr != nil {
			return nil, ierr
		}
		account = &model.Account{
			ClientID:         req.ClientID,
			AccountNumber:    number,
			IBAN:             iban,
			BIC:              BIC,
			HolderName:       req.HolderName,
			Type:             req.Type,
			Currency:         currency,
			Balance:          decimal.Zero,
			AvailableBalance: decimal.Zero,
			OverdraftLimit:   overdraft,
			Status:           model.AccountStatusActive,
			OpenedOn:         s.clock.Today(),
			CreatedAt:        now,
		}
		err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
			return tx.Accounts().Create(ctx, account)
		})
		if !errors.Is(err, repository.ErrDuplicateAccount) {
			break
		}
		log.WithField("account_number", number).Warn("Account number already taken, generating a new one")
	}
	if err != nil {
		log.WithError(err).Error("Failed to open account")
		return nil, err
	}

	log.WithField("iban", account.IBAN).Info("Account opened")
	return account, nil
}

// GetByIBAN returns the account, served from cache when possible.
func (s *AccountService) GetByIBAN(ctx context.Context, iban string) (*model.Account, error) {
	if account, ok := s.cache.get(ctx, iban); ok {
		return account, nil
	}

	var account *model.Account
	err := s.uow.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		account, err = tx.Accounts().Get(ctx, iban)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, iban)
		}
		return nil, err
	}

	s.cache.put(ctx, account)
	return account, nil
}

// ListByClient returns the client's accounts and the sum of the balances of
// the ACTIVE ones, read in one unit of work.
func (s *AccountService) ListByClient(ctx context.Context, clientID int64) (*model.ClientAccounts, error) {
	result := &model.ClientAccounts{ClientID: clientID, Accounts: []*model.Account{}}
	err := s.uow.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		accounts, err := tx.Accounts().ListByClient(ctx, clientID)
		if err != nil {
			return err
		}
		if accounts != nil {
			result.Accounts = accounts
		}
		result.GlobalBalance, err = tx.Accounts().SumActiveBalanceByClient(ctx, clientID)
		return err
	})
	if err != nil {
		logger.Log.WithError(err).WithField("client_id", clientID).Error("Failed to list client accounts")
		return nil, err
	}
	return result, nil
}

// GlobalBalance is the sum of the balances of the client's ACTIVE accounts.
func (s *AccountService) GlobalBalance(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.uow.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		total, err = tx.Accounts().SumActiveBalanceByClient(ctx, clientID)
		return err
	})
	return total, err
}

// newAccountNumber returns an 11 digit RIB account number: the opening date
// as yyMMdd followed by 5 random digits. Uniqueness is enforced by the store.
func newAccountNumber(now time.Time) string {
	return now.Format("060102") + fmt.Sprintf("%05d", rand.IntN(100000))
}

// GenerateIBAN builds a French IBAN from bank code, branch code and an
// account number of at most 11 alphanumeric characters, left-padded with
// zeros. The BBAN carries the whole account number followed by the RIB key.
func GenerateIBAN(bank, branch, accountNumber string) (string, error) {
	if accountNumber == "" || len(accountNumber) > 11 {
		return "", fmt.Errorf("%w: account number must have 1 to 11 characters", ErrInvalidAccountRequest)
	}
	for _, r := range strings.ToUpper(accountNumber) {
		if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') {
			return "", fmt.Errorf("%w: unexpected character %q in account number", ErrInvalidAccountRequest, r)
		}
	}
	accountNumber = strings.Repeat("0", 11-len(accountNumber)) + strings.ToUpper(accountNumber)
	bban := bank + branch + accountNumber + ribKey(bank, branch, accountNumber)
	return "FR" + checkDigits("FR", bban) + bban, nil
}

// ribKey is 97 - ((89*bank + 15*branch + 3*account) mod 97), letters of the
// account number replaced by their RIB digit.
func ribKey(bank, branch, account string) string {
	b, _ := strconv.ParseInt(bank, 10, 64)
	g, _ := strconv.ParseInt(branch, 10, 64)
	a, _ := strconv.ParseInt(ribDigits(account), 10, 64)
	key := 97 - ((89*b + 15*g + 3*a) % 97)
	return fmt.Sprintf("%02d", key)
}

func ribDigits(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'I':
			sb.WriteRune('1' + (r - 'A'))
		case r >= 'J' && r <= 'R':
			sb.WriteRune('1' + (r - 'J'))
		case r >= 'S' && r <= 'Z':
			sb.WriteRune('2' + (r - 'S'))
		}
	}
	return sb.String()
}

func checkDigits(country, bban string) string {
	rem := mod97(bban + country + "00")
	return fmt.Sprintf("%02d", 98-rem)
}

// mod97 converts letters to 10..35 and reduces the resulting number mod 97.
func mod97(s string) int64 {
	var sb strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			sb.WriteString(strconv.Itoa(int(r-'A') + 10))
		} else {
			sb.WriteRune(r)
		}
	}
	n, ok := new(big.Int).SetString(sb.String(), 10)
	if !ok {
		return -1
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64()
}

// ValidateIBAN checks format and ISO 7064 mod-97 check digits.
func ValidateIBAN(iban string) error {
	iban = strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if len(iban) < 15 || len(iban) > 34 {
		return fmt.Errorf("%w: unexpected length %d", ErrInvalidIBAN, len(iban))
	}
	for _, r := range iban {
		if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') {
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidIBAN, r)
		}
	}
	if mod97(iban[4:]+iban[:4]) != 1 {
		return fmt.Errorf("%w: check digits do not match", ErrInvalidIBAN)
	}
	return nil
}
