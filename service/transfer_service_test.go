package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eurobank-ledger/model"
	"eurobank-ledger/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceIBAN = "FR7630001000012601011000123"
	bobIBAN   = "FR7630001000012601011000456"
	extIBAN   = "DE89370400440532013000"
)

type transferFixture struct {
	store    *repository.MemoryStore
	clock    *fakeClock
	svc      *TransferService
	alice    *model.Account
	bob      *model.Account
	transfer model.TransferRequest
}

func newTransferFixture(t *testing.T, aliceBalance string) *transferFixture {
	store := repository.NewMemoryStore(2 * time.Second)
	clock := newFakeClock()
	cfg := DefaultTransferConfig()
	cfg.Backoff = time.Millisecond

	f := &transferFixture{
		store: store,
		clock: clock,
		svc:   NewTransferService(store, clock, UUIDReferenceGenerator{}, cfg, nil),
		alice: seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice Martin", balance: aliceBalance}),
		bob:   seed(t, store, accountSeed{iban: bobIBAN, holder: "Bob Durand", balance: "50.00"}),
	}
	f.transfer = model.TransferRequest{
		SenderIBAN:   aliceIBAN,
		ReceiverIBAN: bobIBAN,
		ReceiverName: "Bob Durand",
		Amount:       dec("100.00"),
		Motif:        "rent",
	}
	return f
}

func TestTransferService_Execute_DebitsSenderAndCreditsReceiver(t *testing.T) {
	f := newTransferFixture(t, "1000.00")

	debit, err := f.svc.Execute(context.Background(), f.transfer, 7)
	require.NoError(t, err)

	assert.Equal(t, model.DirectionDebit, debit.Direction)
	assert.Equal(t, model.OperationTransferSent, debit.OperationType)
	assert.Equal(t, model.EntryStatusExecuted, debit.Status)
	assert.True(t, debit.BalanceBefore.Equal(dec("1000.00")))
	assert.True(t, debit.BalanceAfter.Equal(dec("900.00")))
	assert.Equal(t, bobIBAN, debit.CounterpartyIBAN)
	assert.Equal(t, "Bob Durand", debit.CounterpartyName)
	assert.Equal(t, f.clock.Today().AddDate(0, 0, 1), debit.ValueDate)
	assert.Equal(t, int64(7), debit.CreatedBy)
	assert.Regexp(t, `^EB20260302103000[0-9A-F]{8}$`, debit.Reference)

	alice := reload(t, f.store, aliceIBAN)
	assert.True(t, alice.Balance.Equal(dec("900.00")))
	assert.True(t, alice.AvailableBalance.Equal(dec("900.00")))

	bob := reload(t, f.store, bobIBAN)
	assert.True(t, bob.Balance.Equal(dec("150.00")))
	assert.True(t, bob.AvailableBalance.Equal(dec("150.00")))

	credits := entriesOf(t, f.store, f.bob.ID)
	require.Len(t, credits, 1)
	credit := credits[0]
	assert.Equal(t, model.DirectionCredit, credit.Direction)
	assert.Equal(t, model.OperationTransferReceived, credit.OperationType)
	assert.True(t, credit.Amount.Equal(debit.Amount))
	assert.Equal(t, aliceIBAN, credit.CounterpartyIBAN)
	assert.Equal(t, "Alice Martin", credit.CounterpartyName)
	assert.Equal(t, f.clock.Today(), credit.ValueDate)
	assert.NotEqual(t, debit.Reference, credit.Reference)
}

func TestTransferService_Execute_InstantTransfer(t *testing.T) {
	f := newTransferFixture(t, "20000.00")
	f.transfer.Instant = true

	f.transfer.Amount = dec("15000.00")
	debit, err := f.svc.Execute(context.Background(), f.transfer, 1)
	require.NoError(t, err)
	assert.Equal(t, model.OperationInstantTransfer, debit.OperationType)
	assert.Equal(t, f.clock.Today(), debit.ValueDate)

	f.transfer.Amount = dec("15000.01")
	_, err = f.svc.Execute(context.Background(), f.transfer, 1)
	assert.ErrorIs(t, err, ErrInvalidTransfer)
}

func TestTransferService_Execute_Validation(t *testing.T) {
	f := newTransferFixture(t, "1000.00")
	yesterday := f.clock.Today().AddDate(0, 0, -1)
	tomorrow := f.clock.Today().AddDate(0, 0, 1)

	tests := []struct {
		name   string
		mutate func(r *model.TransferRequest)
	}{
		{"same account", func(r *model.TransferRequest) { r.ReceiverIBAN = r.SenderIBAN }},
		{"instant above ceiling", func(r *model.TransferRequest) { r.Instant = true; r.Amount = dec("15000.01") }},
		{"execution date in the past", func(r *model.TransferRequest) { r.ExecutionDate = &yesterday }},
		{"zero amount", func(r *model.TransferRequest) { r.Amount = dec("0") }},
		{"negative amount", func(r *model.TransferRequest) { r.Amount = dec("-5.00") }},
		{"three decimals", func(r *model.TransferRequest) { r.Amount = dec("1.005") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := f.transfer
			tc.mutate(&req)
			_, err := f.svc.Execute(context.Background(), req, 1)
			assert.ErrorIs(t, err, ErrInvalidTransfer)
		})
	}

	assert.True(t, reload(t, f.store, aliceIBAN).Balance.Equal(dec("1000.00")))
	assert.Empty(t, entriesOf(t, f.store, f.alice.ID))

	t.Run("future execution date is accepted", func(t *testing.T) {
		req := f.transfer
		req.ExecutionDate = &tomorrow
		_, err := f.svc.Execute(context.Background(), req, 1)
		assert.NoError(t, err)
	})
}

func TestTransferService_Execute_ExecutionDateUsesBusinessTimeZone(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	f := newTransferFixture(t, "1000.00")
	f.clock.now = time.Date(2026, 10, 16, 5, 0, 0, 0, paris)

	// Still the 15th in New York, already the 16th in Paris.
	newYork := time.FixedZone("EST", -5*3600)
	sameDay := time.Date(2026, 10, 15, 23, 30, 0, 0, newYork)
	req := f.transfer
	req.ExecutionDate = &sameDay
	_, err = f.svc.Execute(context.Background(), req, 1)
	assert.NoError(t, err)

	dayBefore := time.Date(2026, 10, 15, 15, 0, 0, 0, newYork)
	req.ExecutionDate = &dayBefore
	_, err = f.svc.Execute(context.Background(), req, 1)
	assert.ErrorIs(t, err, ErrInvalidTransfer)
}

func TestTransferService_Execute_InsufficientFunds(t *testing.T) {
	store := repository.NewMemoryStore(time.Second)
	clock := newFakeClock()
	svc := NewTransferService(store, clock, UUIDReferenceGenerator{}, DefaultTransferConfig(), nil)
	seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice", balance: "50.00", overdraft: "20.00"})
	bob := seed(t, store, accountSeed{iban: bobIBAN, holder: "Bob", balance: "0"})

	req := model.TransferRequest{SenderIBAN: aliceIBAN, ReceiverIBAN: bobIBAN, ReceiverName: "Bob", Amount: dec("70.01")}
	_, err := svc.Execute(context.Background(), req, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, reload(t, store, aliceIBAN).Balance.Equal(dec("50.00")))
	assert.Empty(t, entriesOf(t, store, bob.ID))

	req.Amount = dec("70.00")
	debit, err := svc.Execute(context.Background(), req, 1)
	require.NoError(t, err)
	assert.True(t, debit.BalanceAfter.Equal(dec("-20.00")))
	assert.True(t, reload(t, store, aliceIBAN).AvailableBalance.Equal(dec("-20.00")))
}

func TestTransferService_Execute_DailyLimit(t *testing.T) {
	f := newTransferFixture(t, "10000.00")
	f.transfer.Amount = dec("1.00")

	for i := 0; i < 10; i++ {
		_, err := f.svc.Execute(context.Background(), f.transfer, 1)
		require.NoError(t, err, "transfer %d", i+1)
	}

	_, err := f.svc.Execute(context.Background(), f.transfer, 1)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.True(t, reload(t, f.store, aliceIBAN).Balance.Equal(dec("9990.00")))

	// Received transfers are not counted.
	back := model.TransferRequest{SenderIBAN: bobIBAN, ReceiverIBAN: aliceIBAN, ReceiverName: "Alice", Amount: dec("1.00")}
	_, err = f.svc.Execute(context.Background(), back, 1)
	require.NoError(t, err)

	f.clock.now = f.clock.now.AddDate(0, 0, 1)
	_, err = f.svc.Execute(context.Background(), f.transfer, 1)
	assert.NoError(t, err)
}

func TestTransferService_Execute_ExternalReceiver(t *testing.T) {
	f := newTransferFixture(t, "1000.00")
	f.transfer.ReceiverIBAN = extIBAN

	debit, err := f.svc.Execute(context.Background(), f.transfer, 1)
	require.NoError(t, err)
	assert.Equal(t, extIBAN, debit.CounterpartyIBAN)

	assert.True(t, reload(t, f.store, aliceIBAN).Balance.Equal(dec("900.00")))
	assert.True(t, reload(t, f.store, bobIBAN).Balance.Equal(dec("50.00")))
	assert.Len(t, entriesOf(t, f.store, f.alice.ID), 1)
	assert.Empty(t, entriesOf(t, f.store, f.bob.ID))
}

func TestTransferService_Execute_AccountErrors(t *testing.T) {
	f := newTransferFixture(t, "1000.00")
	seed(t, f.store, accountSeed{iban: "FR7630001000012601011000789", holder: "Blocked", balance: "500", status: model.AccountStatusBlocked})
	seed(t, f.store, accountSeed{iban: "FR7630001000012601011000999", holder: "Closed", balance: "0", status: model.AccountStatusClosed})
	seed(t, f.store, accountSeed{iban: "FR7630001000012601011000555", holder: "Dollar", balance: "0", currency: "USD"})

	tests := []struct {
		name     string
		sender   string
		receiver string
		want     error
	}{
		{"unknown sender", "FR7630001000019999999999999", bobIBAN, ErrAccountNotFound},
		{"blocked sender", "FR7630001000012601011000789", bobIBAN, ErrAccountUnavailable},
		{"closed receiver", aliceIBAN, "FR7630001000012601011000999", ErrAccountUnavailable},
		{"currency mismatch", aliceIBAN, "FR7630001000012601011000555", ErrCurrencyMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := f.transfer
			req.SenderIBAN, req.ReceiverIBAN = tc.sender, tc.receiver
			_, err := f.svc.Execute(context.Background(), req, 1)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// Failed credit legs roll the debit back.
	assert.True(t, reload(t, f.store, aliceIBAN).Balance.Equal(dec("1000.00")))
	assert.Empty(t, entriesOf(t, f.store, f.alice.ID))
	assert.ErrorIs(t, ErrCurrencyMismatch, ErrInvalidTransfer)
}

func TestTransferService_Execute_RepeatedRequestIsNotDeduplicated(t *testing.T) {
	f := newTransferFixture(t, "1000.00")

	first, err := f.svc.Execute(context.Background(), f.transfer, 1)
	require.NoError(t, err)
	second, err := f.svc.Execute(context.Background(), f.transfer, 1)
	require.NoError(t, err)

	assert.NotEqual(t, first.Reference, second.Reference)
	assert.True(t, reload(t, f.store, aliceIBAN).Balance.Equal(dec("800.00")))
	assert.Len(t, entriesOf(t, f.store, f.alice.ID), 2)
}

func TestTransferService_Execute_ConcurrentDebitsLoseNoUpdate(t *testing.T) {
	store := repository.NewMemoryStore(5 * time.Second)
	cfg := DefaultTransferConfig()
	cfg.DailyLimit = 1000
	svc := NewTransferService(store, newFakeClock(), UUIDReferenceGenerator{}, cfg, nil)
	alice := seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice", balance: "100.00"})
	bob := seed(t, store, accountSeed{iban: bobIBAN, holder: "Bob", balance: "0"})

	const workers = 50
	req := model.TransferRequest{SenderIBAN: aliceIBAN, ReceiverIBAN: bobIBAN, ReceiverName: "Bob", Amount: dec("1.00")}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Execute(context.Background(), req, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.True(t, reload(t, store, aliceIBAN).Balance.Equal(dec("50.00")))
	assert.True(t, reload(t, store, bobIBAN).Balance.Equal(dec("50.00")))
	assert.Len(t, entriesOf(t, store, alice.ID), workers)
	assert.Len(t, entriesOf(t, store, bob.ID), workers)
}

func TestTransferService_Execute_ConcurrentOverspendIsRejected(t *testing.T) {
	store := repository.NewMemoryStore(5 * time.Second)
	svc := NewTransferService(store, newFakeClock(), UUIDReferenceGenerator{}, DefaultTransferConfig(), nil)
	seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice", balance: "30.00"})
	seed(t, store, accountSeed{iban: bobIBAN, holder: "Bob", balance: "0"})

	req := model.TransferRequest{SenderIBAN: aliceIBAN, ReceiverIBAN: bobIBAN, ReceiverName: "Bob", Amount: dec("10.00")}
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Execute(context.Background(), req, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.True(t, reload(t, store, aliceIBAN).Balance.IsZero())
}

// failingCreditUoW fails every CREDIT append to exercise rollback after the
// sender was already debited.
type failingCreditUoW struct {
	*repository.MemoryStore
}

type failingCreditTx struct {
	repository.Tx
}

type failingCreditLedger struct {
	repository.ILedgerRepository
}

func (u failingCreditUoW) Do(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return u.MemoryStore.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, failingCreditTx{tx})
	})
}

func (t failingCreditTx) Ledger() repository.ILedgerRepository {
	return failingCreditLedger{t.Tx.Ledger()}
}

func (l failingCreditLedger) Append(ctx context.Context, entry *model.LedgerEntry) error {
	if entry.Direction == model.DirectionCredit {
		return errors.New("disk full")
	}
	return l.ILedgerRepository.Append(ctx, entry)
}

func TestTransferService_Execute_LedgerFailureRollsBack(t *testing.T) {
	store := repository.NewMemoryStore(time.Second)
	alice := seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice", balance: "100.00"})
	bob := seed(t, store, accountSeed{iban: bobIBAN, holder: "Bob", balance: "0"})
	svc := NewTransferService(failingCreditUoW{store}, newFakeClock(), UUIDReferenceGenerator{}, DefaultTransferConfig(), nil)

	req := model.TransferRequest{SenderIBAN: aliceIBAN, ReceiverIBAN: bobIBAN, ReceiverName: "Bob", Amount: dec("10.00")}
	_, err := svc.Execute(context.Background(), req, 1)
	require.Error(t, err)

	assert.True(t, reload(t, store, aliceIBAN).Balance.Equal(dec("100.00")))
	assert.True(t, reload(t, store, bobIBAN).Balance.IsZero())
	assert.Empty(t, entriesOf(t, store, alice.ID))
	assert.Empty(t, entriesOf(t, store, bob.ID))
}

type scriptedRefs struct {
	refs []string
}

func (s *scriptedRefs) Next(time.Time) string {
	ref := s.refs[0]
	s.refs = s.refs[1:]
	return ref
}

func TestTransferService_Execute_RegeneratesCollidingReference(t *testing.T) {
	store := repository.NewMemoryStore(time.Second)
	alice := seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice", balance: "100.00"})
	require.NoError(t, store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Ledger().Append(ctx, &model.LedgerEntry{AccountID: 99, Reference: "EBTAKEN"})
	}))

	refs := &scriptedRefs{refs: []string{"EBTAKEN", "EBFRESH"}}
	svc := NewTransferService(store, newFakeClock(), refs, DefaultTransferConfig(), nil)

	req := model.TransferRequest{SenderIBAN: aliceIBAN, ReceiverIBAN: extIBAN, ReceiverName: "Ext", Amount: dec("10.00")}
	debit, err := svc.Execute(context.Background(), req, 1)
	require.NoError(t, err)
	assert.Equal(t, "EBFRESH", debit.Reference)
	assert.Len(t, entriesOf(t, store, alice.ID), 1)
}

// conflictingUoW reports a serialization conflict for the first failures
// calls and then delegates.
type conflictingUoW struct {
	*repository.MemoryStore
	failures int
	calls    int
}

func (u *conflictingUoW) Do(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	u.calls++
	if u.calls <= u.failures {
		return repository.ErrConflict
	}
	return u.MemoryStore.Do(ctx, fn)
}

func TestTransferService_Execute_RetriesConflicts(t *testing.T) {
	store := repository.NewMemoryStore(time.Second)
	seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice", balance: "100.00"})
	cfg := DefaultTransferConfig()
	cfg.Backoff = time.Millisecond
	req := model.TransferRequest{SenderIBAN: aliceIBAN, ReceiverIBAN: extIBAN, ReceiverName: "Ext", Amount: dec("10.00")}

	t.Run("succeeds within retries", func(t *testing.T) {
		uow := &conflictingUoW{MemoryStore: store, failures: 2}
		svc := NewTransferService(uow, newFakeClock(), UUIDReferenceGenerator{}, cfg, nil)
		_, err := svc.Execute(context.Background(), req, 1)
		assert.NoError(t, err)
		assert.Equal(t, 3, uow.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		uow := &conflictingUoW{MemoryStore: store, failures: 10}
		svc := NewTransferService(uow, newFakeClock(), UUIDReferenceGenerator{}, cfg, nil)
		_, err := svc.Execute(context.Background(), req, 1)
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.Equal(t, cfg.MaxRetries+1, uow.calls)
	})
}

func TestTransferService_Execute_LockTimeout(t *testing.T) {
	store := repository.NewMemoryStore(50 * time.Millisecond)
	seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice", balance: "100.00"})
	svc := NewTransferService(store, newFakeClock(), UUIDReferenceGenerator{}, DefaultTransferConfig(), nil)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			_, err := tx.Accounts().GetForUpdate(ctx, aliceIBAN)
			close(held)
			<-release
			return err
		})
	}()
	<-held
	defer close(release)

	req := model.TransferRequest{SenderIBAN: aliceIBAN, ReceiverIBAN: extIBAN, ReceiverName: "Ext", Amount: dec("10.00")}
	_, err := svc.Execute(context.Background(), req, 1)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, err, repository.ErrLockTimeout)
}

// slowLockUoW pauses after every row lock so that concurrent units of work
// overlap while holding their first lock.
type slowLockUoW struct {
	*repository.MemoryStore
	pause time.Duration

	mu    sync.Mutex
	order [][]string
}

type slowLockTx struct {
	repository.Tx
	uow    *slowLockUoW
	locked *[]string
}

type slowLockAccounts struct {
	repository.IAccountRepository
	tx slowLockTx
}

func (u *slowLockUoW) Do(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	var locked []string
	defer func() {
		u.mu.Lock()
		u.order = append(u.order, locked)
		u.mu.Unlock()
	}()
	return u.MemoryStore.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, slowLockTx{Tx: tx, uow: u, locked: &locked})
	})
}

func (t slowLockTx) Accounts() repository.IAccountRepository {
	return slowLockAccounts{IAccountRepository: t.Tx.Accounts(), tx: t}
}

func (a slowLockAccounts) GetForUpdate(ctx context.Context, iban string) (*model.Account, error) {
	acc, err := a.IAccountRepository.GetForUpdate(ctx, iban)
	if err == nil {
		*a.tx.locked = append(*a.tx.locked, iban)
		time.Sleep(a.tx.uow.pause)
	}
	return acc, err
}

func TestTransferService_Execute_LocksAccountsInIDOrder(t *testing.T) {
	store := repository.NewMemoryStore(time.Second)
	seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice", balance: "100.00"})
	seed(t, store, accountSeed{iban: bobIBAN, holder: "Bob", balance: "100.00"})
	uow := &slowLockUoW{MemoryStore: store}
	svc := NewTransferService(uow, newFakeClock(), UUIDReferenceGenerator{}, DefaultTransferConfig(), nil)

	_, err := svc.Execute(context.Background(), model.TransferRequest{SenderIBAN: bobIBAN, ReceiverIBAN: aliceIBAN, ReceiverName: "Alice", Amount: dec("1.00")}, 1)
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), model.TransferRequest{SenderIBAN: aliceIBAN, ReceiverIBAN: bobIBAN, ReceiverName: "Bob", Amount: dec("1.00")}, 1)
	require.NoError(t, err)

	require.Len(t, uow.order, 2)
	assert.Equal(t, []string{aliceIBAN, bobIBAN}, uow.order[0])
	assert.Equal(t, []string{aliceIBAN, bobIBAN}, uow.order[1])
}

func TestTransferService_Execute_ReciprocalTransfersDoNotDeadlock(t *testing.T) {
	store := repository.NewMemoryStore(500 * time.Millisecond)
	seed(t, store, accountSeed{iban: aliceIBAN, holder: "Alice", balance: "1000.00"})
	seed(t, store, accountSeed{iban: bobIBAN, holder: "Bob", balance: "1000.00"})
	cfg := DefaultTransferConfig()
	cfg.DailyLimit = 1000
	uow := &slowLockUoW{MemoryStore: store, pause: 10 * time.Millisecond}
	svc := NewTransferService(uow, newFakeClock(), UUIDReferenceGenerator{}, cfg, nil)

	toBob := model.TransferRequest{SenderIBAN: aliceIBAN, ReceiverIBAN: bobIBAN, ReceiverName: "Bob", Amount: dec("5.00")}
	toAlice := model.TransferRequest{SenderIBAN: bobIBAN, ReceiverIBAN: aliceIBAN, ReceiverName: "Alice", Amount: dec("3.00")}

	const rounds = 20
	for i := 0; i < rounds; i++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, req := range []model.TransferRequest{toBob, toAlice} {
			wg.Add(1)
			go func(j int, req model.TransferRequest) {
				defer wg.Done()
				_, errs[j] = svc.Execute(context.Background(), req, 1)
			}(j, req)
		}
		wg.Wait()
		require.NoError(t, errs[0], "round %d", i)
		require.NoError(t, errs[1], "round %d", i)
	}

	assert.True(t, reload(t, store, aliceIBAN).Balance.Equal(dec("960.00")))
	assert.True(t, reload(t, store, bobIBAN).Balance.Equal(dec("1040.00")))
}
