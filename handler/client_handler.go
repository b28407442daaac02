package handler

import (
	"context"

	"eurobank-ledger/common"
	"eurobank-ledger/events"
	"eurobank-ledger/model"
)

type IClientService interface {
	Create(ctx context.Context, req model.CreateClientRequest) (*model.Client, error)
	Search(ctx context.Context, q model.ClientSearchQuery) (*model.Page[*model.Client], error)
}

type ClientHandler struct {
	service   IClientService
	publisher Publisher
}

func NewClientHandler(s IClientService, p Publisher) *ClientHandler {
	return &ClientHandler{service: s, publisher: p}
}

// Create handles client.create_requested.
func (h *ClientHandler) Create(ctx context.Context, event events.Event) *common.AppError {
	var req model.CreateClientRequest
	if err := decode(event, &req, "client"); err != nil {
		return err
	}

	client, err := h.service.Create(ctx, req)
	if err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.ClientCreated, event.ID, client)
	return nil
}

// Search handles client.search_requested.
func (h *ClientHandler) Search(ctx context.Context, event events.Event) *common.AppError {
	var req model.ClientSearchQuery
	if err := decode(event, &req, "search"); err != nil {
		return err
	}

	page, err := h.service.Search(ctx, req)
	if err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.ClientSearchCompleted, event.ID, page)
	return nil
}
