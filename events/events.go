package events

import (
	"encoding/json"
	"time"

	"eurobank-ledger/model"

	"github.com/shopspring/decimal"
)

// Command types read from the command stream.
const (
	TransferRequested       = "transfer.requested"
	AccountOpenRequested    = "account.open_requested"
	AccountGetRequested     = "account.get_requested"
	AccountHistoryRequested = "account.history_requested"
	ClientAccountsRequested = "client.accounts_requested"
	ClientCreateRequested   = "client.create_requested"
	ClientSearchRequested   = "client.search_requested"
	CardIssueRequested      = "card.issue_requested"
	CardListRequested       = "card.list_requested"
	CardOppositionRequested = "card.opposition_requested"
	CardBlockRequested      = "card.block_requested"
	CardUnblockRequested    = "card.unblock_requested"
	CardOptionsRequested    = "card.options_requested"
	RegisterRequested       = "user.register_requested"
	LoginRequested          = "user.login_requested"
	RefreshRequested        = "user.refresh_requested"
	LogoutRequested         = "user.logout_requested"
)

// Outcome types written to the event stream.
const (
	TransferExecuted        = "transfer.executed"
	TransferRejected        = "transfer.rejected"
	AccountOpened           = "account.opened"
	AccountOpenRejected     = "account.open_rejected"
	AccountRetrieved        = "account.retrieved"
	AccountGetRejected      = "account.get_rejected"
	HistoryRetrieved        = "account.history_retrieved"
	HistoryRejected         = "account.history_rejected"
	ClientAccountsRetrieved = "client.accounts_retrieved"
	ClientAccountsRejected  = "client.accounts_rejected"
	ClientCreated           = "client.created"
	ClientCreateRejected    = "client.create_rejected"
	ClientSearchCompleted   = "client.search_completed"
	ClientSearchRejected    = "client.search_rejected"
	CardIssued              = "card.issued"
	CardIssueRejected       = "card.issue_rejected"
	CardsListed             = "card.listed"
	CardListRejected        = "card.list_rejected"
	CardOpposed             = "card.opposed"
	CardOppositionRejected  = "card.opposition_rejected"
	CardBlocked             = "card.blocked"
	CardBlockRejected       = "card.block_rejected"
	CardUnblocked           = "card.unblocked"
	CardUnblockRejected     = "card.unblock_rejected"
	CardOptionsUpdated      = "card.options_updated"
	CardOptionsRejected     = "card.options_rejected"
	UserRegistered          = "user.registered"
	RegisterRejected        = "user.register_rejected"
	UserAuthenticated       = "user.authenticated"
	LoginRejected           = "user.login_rejected"
	TokenRefreshed          = "user.token_refreshed"
	RefreshRejected         = "user.refresh_rejected"
	UserLoggedOut           = "user.logged_out"
	LogoutRejected          = "user.logout_rejected"
)

// Event is the envelope stored under the "event" field of a stream entry.
// CorrelationID ties an outcome to the command that produced it. Token
// carries the caller's access token on commands that require one.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Token         string          `json:"token,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// Payloads

type TransferExecutedEvent struct {
	Reference     string          `json:"reference"`
	SenderIBAN    string          `json:"sender_iban"`
	ReceiverIBAN  string          `json:"receiver_iban"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OperationType string          `json:"operation_type"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ValueDate     string          `json:"value_date"`
}

type AccountOpenedEvent struct {
	AccountID     int64  `json:"account_id"`
	ClientID      int64  `json:"client_id"`
	AccountNumber string `json:"account_number"`
	IBAN          string `json:"iban"`
	BIC           string `json:"bic"`
	Currency      string `json:"currency"`
}

type UserAuthenticatedEvent struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
	model.TokenPair
}

type UserRegisteredEvent struct {
	UserID   int64  `json:"user_id"`
	Login    string `json:"login"`
	ClientID int64  `json:"client_id,omitempty"`
}

type UserLoggedOutEvent struct {
	UserID int64 `json:"user_id"`
}

type CardsListedEvent struct {
	IBAN  string        `json:"iban"`
	Cards []*model.Card `json:"cards"`
}

// RejectedEvent is the payload of every *.rejected outcome.
type RejectedEvent struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
