package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"eurobank-ledger/events"
	"eurobank-ledger/handler"
	"eurobank-ledger/logger"
	"eurobank-ledger/model"
	"eurobank-ledger/repository"
	"eurobank-ledger/router"
	"eurobank-ledger/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	logger.Init(logger.WithLevel("fatal"))
	os.Exit(m.Run())
}

type published struct {
	eventType     string
	correlationID string
	data          any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType, correlationID string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{eventType, correlationID, data})
	return nil
}

func (p *recordingPublisher) last() published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fixture struct {
	router   *router.Router
	pub      *recordingPublisher
	accounts *service.AccountService
	token    string
	userID   int64
}

func newTestRouter(t *testing.T) *fixture {
	store := repository.NewMemoryStore(time.Second)
	clock := &service.SystemClock{Location: time.UTC}
	pub := &recordingPublisher{}

	tokens := service.NewTokenService(repository.NewMemoryTokenRepository(), clock, service.TokenConfig{
		SecretKey:  "router-test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	})
	accounts := service.NewAccountService(store, clock, nil)
	transfers := service.NewTransferService(store, clock, service.UUIDReferenceGenerator{}, service.DefaultTransferConfig(), nil)
	auth := service.NewAuthService(repository.NewMemoryUserRepository(), tokens, clock, 5, bcrypt.MinCost)

	r := router.NewRouter(pub, tokens, router.Handlers{
		Transfer: handler.NewTransferHandler(transfers, pub),
		Account:  handler.NewAccountHandler(accounts, service.NewHistoryService(store, clock), pub),
		Client:   handler.NewClientHandler(service.NewClientService(repository.NewMemoryClientRepository(), clock), pub),
		Card:     handler.NewCardHandler(service.NewCardService(store, clock), pub),
		Auth:     handler.NewAuthHandler(auth, pub),
	})
	f := &fixture{router: r, pub: pub, accounts: accounts}

	f.dispatch(t, "reg", events.RegisterRequested, model.RegisterRequest{Login: "alice", Password: "correct-horse", ClientID: 1})
	require.Equal(t, events.UserRegistered, pub.last().eventType)
	f.dispatch(t, "login", events.LoginRequested, model.LoginRequest{Login: "alice", Password: "correct-horse"})
	require.Equal(t, events.UserAuthenticated, pub.last().eventType)
	authenticated := pub.last().data.(events.UserAuthenticatedEvent)
	f.token, f.userID = "Bearer "+authenticated.AccessToken, authenticated.UserID
	return f
}

func command(t *testing.T, id, eventType string, data any) events.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return events.Event{ID: id, Type: eventType, Data: raw}
}

func (f *fixture) dispatch(t *testing.T, id, eventType string, data any) published {
	t.Helper()
	require.NoError(t, f.router.Dispatch(context.Background(), command(t, id, eventType, data)))
	return f.pub.last()
}

func (f *fixture) dispatchAuth(t *testing.T, id, eventType string, data any) published {
	t.Helper()
	cmd := command(t, id, eventType, data)
	cmd.Token = f.token
	require.NoError(t, f.router.Dispatch(context.Background(), cmd))
	return f.pub.last()
}

func TestRouter_OpenAccountThenTransfer(t *testing.T) {
	f := newTestRouter(t)
	ctx := context.Background()

	opened := f.dispatchAuth(t, "c1", events.AccountOpenRequested, model.OpenAccountRequest{
		ClientID: 1, HolderName: "Alice", Type: model.AccountTypeCurrent,
		OverdraftLimit: func() *decimal.Decimal { d := decimal.RequireFromString("100.00"); return &d }(),
	})
	require.Equal(t, events.AccountOpened, opened.eventType)
	assert.Equal(t, "c1", opened.correlationID)
	alice := opened.data.(events.AccountOpenedEvent)

	second := f.dispatchAuth(t, "c2", events.AccountOpenRequested, model.OpenAccountRequest{
		ClientID: 2, HolderName: "Bob", Type: model.AccountTypeSavings,
	})
	require.Equal(t, events.AccountOpened, second.eventType)
	bob := second.data.(events.AccountOpenedEvent)

	transfer := model.TransferRequest{
		SenderIBAN:   alice.IBAN,
		ReceiverIBAN: bob.IBAN,
		ReceiverName: "Bob",
		Amount:       decimal.RequireFromString("40.00"),
	}
	executed := f.dispatchAuth(t, "c3", events.TransferRequested, transfer)
	require.Equal(t, events.TransferExecuted, executed.eventType)
	assert.Equal(t, "c3", executed.correlationID)
	assert.True(t, executed.data.(events.TransferExecutedEvent).BalanceAfter.Equal(decimal.RequireFromString("-40.00")))

	got, err := f.accounts.GetByIBAN(ctx, bob.IBAN)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("40.00")))

	history := f.dispatchAuth(t, "c4", events.AccountHistoryRequested, model.HistoryQuery{IBAN: alice.IBAN})
	require.Equal(t, events.HistoryRetrieved, history.eventType)
	page := history.data.(*model.Page[*model.LedgerEntry])
	require.Len(t, page.Content, 1)
	assert.Equal(t, f.userID, page.Content[0].CreatedBy)

	transfer.Amount = decimal.RequireFromString("60.01")
	rejected := f.dispatchAuth(t, "c5", events.TransferRequested, transfer)
	require.Equal(t, events.TransferRejected, rejected.eventType)
	assert.Equal(t, "INSUFFICIENT_FUNDS", rejected.data.(events.RejectedEvent).Code)
}

func TestRouter_ProtectedCommandsRequireToken(t *testing.T) {
	f := newTestRouter(t)
	transfer := model.TransferRequest{
		SenderIBAN:   "FR7630001000012601011000123",
		ReceiverIBAN: "FR7630001000012601011000456",
		ReceiverName: "Bob",
		Amount:       decimal.RequireFromString("1.00"),
	}

	rejected := f.dispatch(t, "c1", events.TransferRequested, transfer)
	require.Equal(t, events.TransferRejected, rejected.eventType)
	assert.Equal(t, "UNAUTHORIZED", rejected.data.(events.RejectedEvent).Code)

	f.token = "Bearer not-a-jwt"
	rejected = f.dispatchAuth(t, "c2", events.AccountGetRequested, model.AccountRef{IBAN: transfer.SenderIBAN})
	require.Equal(t, events.AccountGetRejected, rejected.eventType)
	assert.Equal(t, "UNAUTHORIZED", rejected.data.(events.RejectedEvent).Code)
}

func TestRouter_GetAccountAndClientAccounts(t *testing.T) {
	f := newTestRouter(t)

	opened := f.dispatchAuth(t, "c1", events.AccountOpenRequested, model.OpenAccountRequest{ClientID: 5, HolderName: "Alice", Type: model.AccountTypeCurrent})
	iban := opened.data.(events.AccountOpenedEvent).IBAN

	got := f.dispatchAuth(t, "c2", events.AccountGetRequested, model.AccountRef{IBAN: iban})
	require.Equal(t, events.AccountRetrieved, got.eventType)
	assert.Equal(t, iban, got.data.(*model.Account).IBAN)

	missing := f.dispatchAuth(t, "c3", events.AccountGetRequested, model.AccountRef{IBAN: "FR7630001000012601011000999"})
	require.Equal(t, events.AccountGetRejected, missing.eventType)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", missing.data.(events.RejectedEvent).Code)

	listed := f.dispatchAuth(t, "c4", events.ClientAccountsRequested, model.ClientRef{ClientID: 5})
	require.Equal(t, events.ClientAccountsRetrieved, listed.eventType)
	result := listed.data.(*model.ClientAccounts)
	assert.Len(t, result.Accounts, 1)
	assert.True(t, result.GlobalBalance.IsZero())
}

func TestRouter_CardLifecycle(t *testing.T) {
	f := newTestRouter(t)

	opened := f.dispatchAuth(t, "c1", events.AccountOpenRequested, model.OpenAccountRequest{ClientID: 1, HolderName: "Alice", Type: model.AccountTypeCurrent})
	iban := opened.data.(events.AccountOpenedEvent).IBAN

	issued := f.dispatchAuth(t, "c2", events.CardIssueRequested, model.IssueCardRequest{
		IBAN: iban, Holder: "Alice Martin", Type: model.CardTypeVisaPremier, Network: model.CardNetworkVisa,
	})
	require.Equal(t, events.CardIssued, issued.eventType)
	card := issued.data.(*model.Card)

	blocked := f.dispatchAuth(t, "c3", events.CardBlockRequested, model.CardRef{CardID: card.ID})
	require.Equal(t, events.CardBlocked, blocked.eventType)
	assert.Equal(t, model.CardStatusBlocked, blocked.data.(*model.Card).Status)

	opposed := f.dispatchAuth(t, "c4", events.CardOppositionRequested, model.OppositionRequest{CardID: card.ID, Reason: "stolen"})
	require.Equal(t, events.CardOpposed, opposed.eventType)

	unblock := f.dispatchAuth(t, "c5", events.CardUnblockRequested, model.CardRef{CardID: card.ID})
	require.Equal(t, events.CardUnblockRejected, unblock.eventType)
	assert.Equal(t, "CARD_OPPOSED", unblock.data.(events.RejectedEvent).Code)

	listed := f.dispatchAuth(t, "c6", events.CardListRequested, model.AccountRef{IBAN: iban})
	require.Equal(t, events.CardsListed, listed.eventType)
	cards := listed.data.(events.CardsListedEvent).Cards
	require.Len(t, cards, 1)
	assert.Equal(t, model.CardStatusOpposed, cards[0].Status)
}

func TestRouter_ClientCreateAndSearch(t *testing.T) {
	f := newTestRouter(t)

	created := f.dispatchAuth(t, "c1", events.ClientCreateRequested, model.CreateClientRequest{Title: "MRS", LastName: "martin", FirstName: "alice"})
	require.Equal(t, events.ClientCreated, created.eventType)
	assert.Equal(t, "MARTIN", created.data.(*model.Client).LastName)

	found := f.dispatchAuth(t, "c2", events.ClientSearchRequested, model.ClientSearchQuery{Term: "mar"})
	require.Equal(t, events.ClientSearchCompleted, found.eventType)
	assert.Equal(t, int64(1), found.data.(*model.Page[*model.Client]).TotalElements)

	short := f.dispatchAuth(t, "c3", events.ClientSearchRequested, model.ClientSearchQuery{Term: "m"})
	require.Equal(t, events.ClientSearchRejected, short.eventType)
	assert.Equal(t, "INVALID_REQUEST", short.data.(events.RejectedEvent).Code)
}

func TestRouter_LoginRefreshLogout(t *testing.T) {
	f := newTestRouter(t)

	rejected := f.dispatch(t, "c1", events.LoginRequested, model.LoginRequest{Login: "alice", Password: "wrong-horse"})
	assert.Equal(t, events.LoginRejected, rejected.eventType)
	assert.Equal(t, "UNAUTHORIZED", rejected.data.(events.RejectedEvent).Code)

	dup := f.dispatch(t, "c2", events.RegisterRequested, model.RegisterRequest{Login: "alice", Password: "another-pass"})
	assert.Equal(t, events.RegisterRejected, dup.eventType)
	assert.Equal(t, "ALREADY_EXISTS", dup.data.(events.RejectedEvent).Code)

	login := f.dispatch(t, "c3", events.LoginRequested, model.LoginRequest{Login: "alice", Password: "correct-horse"})
	pair := login.data.(events.UserAuthenticatedEvent).TokenPair

	refreshed := f.dispatch(t, "c4", events.RefreshRequested, model.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, events.TokenRefreshed, refreshed.eventType)
	assert.Equal(t, pair.RefreshToken, refreshed.data.(*model.TokenPair).RefreshToken)

	loggedOut := f.dispatchAuth(t, "c5", events.LogoutRequested, struct{}{})
	require.Equal(t, events.UserLoggedOut, loggedOut.eventType)
	assert.Equal(t, f.userID, loggedOut.data.(events.UserLoggedOutEvent).UserID)

	again := f.dispatch(t, "c6", events.RefreshRequested, model.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, events.RefreshRejected, again.eventType)
	assert.Equal(t, "UNAUTHORIZED", again.data.(events.RejectedEvent).Code)
}

func TestRouter_UnknownCommandIsAcknowledged(t *testing.T) {
	f := newTestRouter(t)
	before := len(f.pub.events)

	assert.NoError(t, f.router.Dispatch(context.Background(), events.Event{ID: "x", Type: "account.close_requested"}))
	assert.Len(t, f.pub.events, before)
}

func TestRouter_HandlerErrorPropagates(t *testing.T) {
	r := router.New()
	boom := errors.New("boom")
	r.Handle("custom", func(ctx context.Context, event events.Event) error { return boom })

	assert.Equal(t, boom, r.Dispatch(context.Background(), events.Event{Type: "custom"}))
}
