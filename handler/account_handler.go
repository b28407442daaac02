package handler

import (
	"context"
	"encoding/json"

	"eurobank-ledger/common"
	"eurobank-ledger/events"
	"eurobank-ledger/model"
)

type IAccountService interface {
	Open(ctx context.Context, req model.OpenAccountRequest) (*model.Account, error)
	GetByIBAN(ctx context.Context, iban string) (*model.Account, error)
	ListByClient(ctx context.Context, clientID int64) (*model.ClientAccounts, error)
}

type IHistoryService interface {
	List(ctx context.Context, q model.HistoryQuery) (*model.Page[*model.LedgerEntry], error)
}

type AccountHandler struct {
	service   IAccountService
	history   IHistoryService
	publisher Publisher
}

func NewAccountHandler(s IAccountService, history IHistoryService, p Publisher) *AccountHandler {
	return &AccountHandler{service: s, history: history, publisher: p}
}

// decode unmarshals the command payload into dst and validates it.
func decode(event events.Event, dst any, what string) *common.AppError {
	if err := json.Unmarshal(event.Data, dst); err != nil {
		return common.NewAppError(common.CodeInvalidRequest, "invalid "+what+" payload", err)
	}
	return common.Validate(dst)
}

// Open handles account.open_requested.
func (h *AccountHandler) Open(ctx context.Context, event events.Event) *common.AppError {
	var req model.OpenAccountRequest
	if err := decode(event, &req, "account"); err != nil {
		return err
	}

	account, err := h.service.Open(ctx, req)
	if err != nil {
		return Classify(err)
	}

	publish(ctx, h.publisher, events.AccountOpened, event.ID, events.AccountOpenedEvent{
		AccountID:     account.ID,
		ClientID:      account.ClientID,
		AccountNumber: account.AccountNumber,
		IBAN:          account.IBAN,
		BIC:           account.BIC,
		Currency:      account.Currency,
	})
	return nil
}

// Get handles account.get_requested.
func (h *AccountHandler) Get(ctx context.Context, event events.Event) *common.AppError {
	var req model.AccountRef
	if err := decode(event, &req, "account"); err != nil {
		return err
	}

	account, err := h.service.GetByIBAN(ctx, req.IBAN)
	if err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.AccountRetrieved, event.ID, account)
	return nil
}

// History handles account.history_requested.
func (h *AccountHandler) History(ctx context.Context, event events.Event) *common.AppError {
	var req model.HistoryQuery
	if err := decode(event, &req, "history"); err != nil {
		return err
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.From.After(req.To) {
		return common.NewAppError(common.CodeInvalidRequest, "from must not be after to", nil)
	}

	page, err := h.history.List(ctx, req)
	if err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.HistoryRetrieved, event.ID, page)
	return nil
}

// ClientAccounts handles client.accounts_requested.
func (h *AccountHandler) ClientAccounts(ctx context.Context, event events.Event) *common.AppError {
	var req model.ClientRef
	if err := decode(event, &req, "client"); err != nil {
		return err
	}

	result, err := h.service.ListByClient(ctx, req.ClientID)
	if err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.ClientAccountsRetrieved, event.ID, result)
	return nil
}
