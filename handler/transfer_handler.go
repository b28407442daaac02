package handler

import (
	"context"
	"encoding/json"

	"eurobank-ledger/common"
	"eurobank-ledger/events"
	"eurobank-ledger/model"
)

type ITransferService interface {
	Execute(ctx context.Context, req model.TransferRequest, actingUserID int64) (*model.LedgerEntry, error)
}

// TransferHandler executes transfer commands and publishes their outcome.
type TransferHandler struct {
	service   ITransferService
	publisher Publisher
}

func NewTransferHandler(s ITransferService, p Publisher) *TransferHandler {
	return &TransferHandler{service: s, publisher: p}
}

// Execute handles transfer.requested. The acting user is the one whose token
// was verified by AuthMiddleware.
func (h *TransferHandler) Execute(ctx context.Context, event events.Event) *common.AppError {
	actingUserID, appErr := authenticatedUser(ctx)
	if appErr != nil {
		return appErr
	}

	var cmd model.TransferRequest
	if err := json.Unmarshal(event.Data, &cmd); err != nil {
		return common.NewAppError(common.CodeInvalidRequest, "invalid transfer payload", err)
	}
	if err := common.Validate(&cmd); err != nil {
		return err
	}

	entry, err := h.service.Execute(ctx, cmd, actingUserID)
	if err != nil {
		return Classify(err)
	}

	publish(ctx, h.publisher, events.TransferExecuted, event.ID, events.TransferExecutedEvent{
		Reference:     entry.Reference,
		SenderIBAN:    cmd.SenderIBAN,
		ReceiverIBAN:  cmd.ReceiverIBAN,
		Amount:        entry.Amount,
		Currency:      entry.Currency,
		OperationType: string(entry.OperationType),
		BalanceAfter:  entry.BalanceAfter,
		ValueDate:     entry.ValueDate.Format("2006-01-02"),
	})
	return nil
}
