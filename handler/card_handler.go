package handler

import (
	"context"

	"eurobank-ledger/common"
	"eurobank-ledger/events"
	"eurobank-ledger/model"
)

type ICardService interface {
	Issue(ctx context.Context, req model.IssueCardRequest) (*model.Card, error)
	ListByAccount(ctx context.Context, iban string) ([]*model.Card, error)
	Oppose(ctx context.Context, req model.OppositionRequest) (*model.Card, error)
	Block(ctx context.Context, id int64) (*model.Card, error)
	Unblock(ctx context.Context, id int64) (*model.Card, error)
	UpdateOptions(ctx context.Context, req model.CardOptionsRequest) (*model.Card, error)
}

// CardHandler runs card commands. Every success publishes the card as it is
// after the change.
type CardHandler struct {
	service   ICardService
	publisher Publisher
}

func NewCardHandler(s ICardService, p Publisher) *CardHandler {
	return &CardHandler{service: s, publisher: p}
}

func (h *CardHandler) Issue(ctx context.Context, event events.Event) *common.AppError {
	var req model.IssueCardRequest
	if err := decode(event, &req, "card"); err != nil {
		return err
	}
	return h.respond(ctx, event, events.CardIssued)(h.service.Issue(ctx, req))
}

func (h *CardHandler) List(ctx context.Context, event events.Event) *common.AppError {
	var req model.AccountRef
	if err := decode(event, &req, "account"); err != nil {
		return err
	}

	cards, err := h.service.ListByAccount(ctx, req.IBAN)
	if err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.CardsListed, event.ID, events.CardsListedEvent{IBAN: req.IBAN, Cards: cards})
	return nil
}

func (h *CardHandler) Oppose(ctx context.Context, event events.Event) *common.AppError {
	var req model.OppositionRequest
	if err := decode(event, &req, "opposition"); err != nil {
		return err
	}
	return h.respond(ctx, event, events.CardOpposed)(h.service.Oppose(ctx, req))
}

func (h *CardHandler) Block(ctx context.Context, event events.Event) *common.AppError {
	var req model.CardRef
	if err := decode(event, &req, "card"); err != nil {
		return err
	}
	return h.respond(ctx, event, events.CardBlocked)(h.service.Block(ctx, req.CardID))
}

func (h *CardHandler) Unblock(ctx context.Context, event events.Event) *common.AppError {
	var req model.CardRef
	if err := decode(event, &req, "card"); err != nil {
		return err
	}
	return h.respond(ctx, event, events.CardUnblocked)(h.service.Unblock(ctx, req.CardID))
}

func (h *CardHandler) Options(ctx context.Context, event events.Event) *common.AppError {
	var req model.CardOptionsRequest
	if err := decode(event, &req, "card options"); err != nil {
		return err
	}
	return h.respond(ctx, event, events.CardOptionsUpdated)(h.service.UpdateOptions(ctx, req))
}

func (h *CardHandler) respond(ctx context.Context, event events.Event, outcome string) func(*model.Card, error) *common.AppError {
	return func(card *model.Card, err error) *common.AppError {
		if err != nil {
			return Classify(err)
		}
		publish(ctx, h.publisher, outcome, event.ID, card)
		return nil
	}
}
