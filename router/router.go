package router

import (
	"context"

	"eurobank-ledger/events"
	"eurobank-ledger/handler"
	"eurobank-ledger/logger"
)

// Router dispatches stream commands to handlers by event type.
type Router struct {
	routes map[string]events.Handler
}

func New() *Router {
	return &Router{routes: make(map[string]events.Handler)}
}

func (r *Router) Handle(eventType string, h events.Handler) {
	r.routes[eventType] = h
}

// Dispatch runs the handler registered for event.Type. Unknown types are
// logged and acknowledged.
func (r *Router) Dispatch(ctx context.Context, event events.Event) error {
	h, ok := r.routes[event.Type]
	if !ok {
		logger.Log.WithField("type", event.Type).WithField("command_id", event.ID).Warn("No handler registered for command")
		return nil
	}
	return h(ctx, event)
}

// Handlers groups the command handlers wired into the router.
type Handlers struct {
	Transfer *handler.TransferHandler
	Account  *handler.AccountHandler
	Client   *handler.ClientHandler
	Card     *handler.CardHandler
	Auth     *handler.AuthHandler
}

// NewRouter registers every command. Only register, login and refresh are
// accepted without an access token.
func NewRouter(pub handler.Publisher, verifier handler.TokenVerifier, h Handlers) *Router {
	r := New()

	open := func(command, rejected string, next handler.CommandFunc) {
		r.Handle(command, handler.ErrorHandlingMiddleware(pub, rejected, next))
	}
	protected := func(command, rejected string, next handler.CommandFunc) {
		r.Handle(command, handler.ErrorHandlingMiddleware(pub, rejected, handler.AuthMiddleware(verifier, next)))
	}

	open(events.RegisterRequested, events.RegisterRejected, h.Auth.Register)
	open(events.LoginRequested, events.LoginRejected, h.Auth.Login)
	open(events.RefreshRequested, events.RefreshRejected, h.Auth.Refresh)
	protected(events.LogoutRequested, events.LogoutRejected, h.Auth.Logout)

	protected(events.TransferRequested, events.TransferRejected, h.Transfer.Execute)

	protected(events.AccountOpenRequested, events.AccountOpenRejected, h.Account.Open)
	protected(events.AccountGetRequested, events.AccountGetRejected, h.Account.Get)
	protected(events.AccountHistoryRequested, events.HistoryRejected, h.Account.History)
	protected(events.ClientAccountsRequested, events.ClientAccountsRejected, h.Account.ClientAccounts)

	protected(events.ClientCreateRequested, events.ClientCreateRejected, h.Client.Create)
	protected(events.ClientSearchRequested, events.ClientSearchRejected, h.Client.Search)

	protected(events.CardIssueRequested, events.CardIssueRejected, h.Card.Issue)
	protected(events.CardListRequested, events.CardListRejected, h.Card.List)
	protected(events.CardOppositionRequested, events.CardOppositionRejected, h.Card.Oppose)
	protected(events.CardBlockRequested, events.CardBlockRejected, h.Card.Block)
	protected(events.CardUnblockRequested, events.CardUnblockRejected, h.Card.Unblock)
	protected(events.CardOptionsRequested, events.CardOptionsRejected, h.Card.Options)

	return r
}
