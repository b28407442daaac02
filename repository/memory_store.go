package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"eurobank-ledger/logger"
	"eurobank-ledger/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MemoryStore is a process-local UnitOfWork used for tests and for
// store.driver=memory. Row locks are per account and per card and are held
// until the unit of work ends; writes are undone on failure. Non-locking reads may observe
// uncommitted balances of a concurrent unit of work.
type MemoryStore struct {
	LockTimeout time.Duration
	Now         func() time.Time

	mu            sync.Mutex
	accounts      map[int64]*model.Account
	byIBAN        map[string]int64
	byNumber      map[string]int64
	locks         map[lockKey]chan struct{}
	entries       []*model.LedgerEntry
	references    map[string]struct{}
	cards         map[int64]*model.Card
	cardHashes    map[string]struct{}
	nextAccountID int64
	nextEntryID   int64
	nextCardID    int64
}

type lockKey struct {
	table string
	id    int64
}

func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		LockTimeout: lockTimeout,
		Now:         time.Now,
		accounts:    make(map[int64]*model.Account),
		byIBAN:      make(map[string]int64),
		byNumber:    make(map[string]int64),
		locks:       make(map[lockKey]chan struct{}),
		references:  make(map[string]struct{}),
		cards:       make(map[int64]*model.Card),
		cardHashes:  make(map[string]struct{}),
	}
}

type memoryTx struct {
	store *MemoryStore
	held  map[lockKey]chan struct{}
	undo  []func()
}

func (t *memoryTx) Accounts() IAccountRepository { return (*memoryAccounts)(t) }
func (t *memoryTx) Ledger() ILedgerRepository    { return (*memoryLedger)(t) }
func (t *memoryTx) Cards() ICardRepository       { return (*memoryCards)(t) }

func (s *MemoryStore) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{store: s, held: make(map[lockKey]chan struct{})}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.Do(ctx, fn)
}

func (t *memoryTx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	logger.Log.WithField("undone_writes", len(t.undo)).Debug("Memory unit of work rolled back")
	t.undo = nil
}

func (t *memoryTx) release() {
	for key, ch := range t.held {
		<-ch
		delete(t.held, key)
	}
}

func (t *memoryTx) acquire(ctx context.Context, key lockKey) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	t.store.mu.Lock()
	ch := t.store.locks[key]
	t.store.mu.Unlock()

	var timeout <-chan time.Time
	if t.store.LockTimeout > 0 {
		timer := time.NewTimer(t.store.LockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case ch <- struct{}{}:
		t.held[key] = ch
		return nil
	case <-timeout:
		logger.Log.WithFields(logrus.Fields{"table": key.table, "id": key.id}).Warn("Timed out waiting for row lock")
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

type memoryAccounts memoryTx

func (a *memoryAccounts) lookup(iban string) (int64, bool) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	id, ok := a.store.byIBAN[iban]
	return id, ok
}

func (a *memoryAccounts) snapshot(id int64) *model.Account {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	acc := *a.store.accounts[id]
	return &acc
}

func (a *memoryAccounts) GetForUpdate(ctx context.Context, iban string) (*model.Account, error) {
	id, ok := a.lookup(iban)
	if !ok {
		return nil, ErrNotFound
	}
	if err := (*memoryTx)(a).acquire(ctx, lockKey{"accounts", id}); err != nil {
		return nil, err
	}
	return a.snapshot(id), nil
}

func (a *memoryAccounts) Get(ctx context.Context, iban string) (*model.Account, error) {
	id, ok := a.lookup(iban)
	if !ok {
		return nil, ErrNotFound
	}
	return a.snapshot(id), nil
}

func (a *memoryAccounts) UpdateBalance(ctx context.Context, accountID int64, balance, available decimal.Decimal, at time.Time) (int64, error) {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return 0, nil
	}
	prevBalance, prevAvailable, prevUpdated := acc.Balance, acc.AvailableBalance, acc.UpdatedAt
	acc.Balance, acc.AvailableBalance, acc.UpdatedAt = balance, available, at
	a.undo = append(a.undo, func() {
		acc.Balance, acc.AvailableBalance, acc.UpdatedAt = prevBalance, prevAvailable, prevUpdated
	})
	return 1, nil
}

func (a *memoryAccounts) Create(ctx context.Context, account *model.Account) error {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIBAN[account.IBAN]; ok {
		return ErrDuplicateAccount
	}
	if _, ok := s.byNumber[account.AccountNumber]; ok {
		return ErrDuplicateAccount
	}
	s.nextAccountID++
	account.ID = s.nextAccountID
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.Now()
	}
	account.UpdatedAt = account.CreatedAt

	stored := *account
	s.accounts[stored.ID] = &stored
	s.byIBAN[stored.IBAN] = stored.ID
	s.byNumber[stored.AccountNumber] = stored.ID
	s.locks[lockKey{"accounts", stored.ID}] = make(chan struct{}, 1)
	a.undo = append(a.undo, func() {
		delete(s.accounts, stored.ID)
		delete(s.byIBAN, stored.IBAN)
		delete(s.byNumber, stored.AccountNumber)
		delete(s.locks, lockKey{"accounts", stored.ID})
	})
	logger.Log.WithFields(logrus.Fields{"account_id": stored.ID, "iban": stored.IBAN}).Debug("Account created in memory store")
	return nil
}

func (a *memoryAccounts) ListByClient(ctx context.Context, clientID int64) ([]*model.Account, error) {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []*model.Account
	for _, acc := range s.accounts {
		if acc.ClientID == clientID {
			copied := *acc
			accounts = append(accounts, &copied)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (a *memoryAccounts) SumActiveBalanceByClient(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, acc := range s.accounts {
		if acc.ClientID == clientID && acc.Status == model.AccountStatusActive {
			total = total.Add(acc.Balance)
		}
	}
	return total, nil
}

type memoryLedger memoryTx

func (l *memoryLedger) Append(ctx context.Context, entry *model.LedgerEntry) error {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.references[entry.Reference]; ok {
		return ErrDuplicateReference
	}
	s.nextEntryID++
	entry.ID = s.nextEntryID
	entry.CreatedAt = s.Now()

	stored := *entry
	s.entries = append(s.entries, &stored)
	s.references[stored.Reference] = struct{}{}
	l.undo = append(l.undo, func() {
		delete(s.references, stored.Reference)
		for i, e := range s.entries {
			if e.ID == stored.ID {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (l *memoryLedger) CountExecutedByTypeAndDate(ctx context.Context, accountID int64, date time.Time, types ...model.OperationType) (int, error) {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()

	day := dateOnly(date)
	count := 0
	for _, e := range s.entries {
		if e.AccountID != accountID || e.Status != model.EntryStatusExecuted || !dateOnly(e.OperationDate).Equal(day) {
			continue
		}
		for _, t := range types {
			if e.OperationType == t {
				count++
				break
			}
		}
	}
	return count, nil
}

func (l *memoryLedger) ListByAccount(ctx context.Context, filter EntryFilter) ([]*model.LedgerEntry, int64, error) {
	s := l.store
	s.mu.Lock()
	var matched []*model.LedgerEntry
	from, to := dateOnly(filter.From), dateOnly(filter.To)
	for _, e := range s.entries {
		if e.AccountID != filter.AccountID {
			continue
		}
		day := dateOnly(e.OperationDate)
		if day.Before(from) || day.After(to) {
			continue
		}
		if filter.OperationType != "" && e.OperationType != filter.OperationType {
			continue
		}
		entry := *e
		matched = append(matched, &entry)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		di, dj := dateOnly(matched[i].OperationDate), dateOnly(matched[j].OperationDate)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	end := len(matched)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

type memoryCards memoryTx

func (c *memoryCards) Create(ctx context.Context, card *model.Card) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cardHashes[card.NumberHash]; ok {
		return ErrDuplicateCard
	}
	s.nextCardID++
	card.ID = s.nextCardID
	if card.CreatedAt.IsZero() {
		card.CreatedAt = s.Now()
	}
	card.UpdatedAt = card.CreatedAt

	stored := *card
	s.cards[stored.ID] = &stored
	s.cardHashes[stored.NumberHash] = struct{}{}
	s.locks[lockKey{"cards", stored.ID}] = make(chan struct{}, 1)
	c.undo = append(c.undo, func() {
		delete(s.cards, stored.ID)
		delete(s.cardHashes, stored.NumberHash)
		delete(s.locks, lockKey{"cards", stored.ID})
	})
	return nil
}

func (c *memoryCards) snapshot(id int64) (*model.Card, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	card, ok := c.store.cards[id]
	if !ok {
		return nil, false
	}
	copied := *card
	return &copied, true
}

func (c *memoryCards) Get(ctx context.Context, id int64) (*model.Card, error) {
	card, ok := c.snapshot(id)
	if !ok {
		return nil, ErrNotFound
	}
	return card, nil
}

func (c *memoryCards) GetForUpdate(ctx context.Context, id int64) (*model.Card, error) {
	if _, ok := c.snapshot(id); !ok {
		return nil, ErrNotFound
	}
	if err := (*memoryTx)(c).acquire(ctx, lockKey{"cards", id}); err != nil {
		return nil, err
	}
	card, _ := c.snapshot(id)
	return card, nil
}

func (c *memoryCards) ListByAccount(ctx context.Context, accountID int64) ([]*model.Card, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var cards []*model.Card
	for _, card := range s.cards {
		if card.AccountID == accountID {
			copied := *card
			cards = append(cards, &copied)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

func (c *memoryCards) Update(ctx context.Context, card *model.Card) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.cards[card.ID]
	if !ok {
		return ErrNotFound
	}
	prev := *current
	next := *card
	next.NumberHash, next.MaskedNumber, next.AccountID, next.CreatedAt = prev.NumberHash, prev.MaskedNumber, prev.AccountID, prev.CreatedAt
	*current = next
	c.undo = append(c.undo, func() { *current = prev })
	return nil
}
