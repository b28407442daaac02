package handler

import (
	"context"

	"eurobank-ledger/common"
	"eurobank-ledger/events"
	"eurobank-ledger/model"
)

type IAuthService interface {
	Register(ctx context.Context, login, password string, clientID int64) (*model.User, error)
	Login(ctx context.Context, login, password string) (*model.User, *model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	Logout(ctx context.Context, userID int64) error
}

type AuthHandler struct {
	service   IAuthService
	publisher Publisher
}

func NewAuthHandler(s IAuthService, p Publisher) *AuthHandler {
	return &AuthHandler{service: s, publisher: p}
}

// Register handles user.register_requested.
func (h *AuthHandler) Register(ctx context.Context, event events.Event) *common.AppError {
	var req model.RegisterRequest
	if err := decode(event, &req, "register"); err != nil {
		return err
	}

	user, err := h.service.Register(ctx, req.Login, req.Password, req.ClientID)
	if err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.UserRegistered, event.ID, events.UserRegisteredEvent{
		UserID:   user.ID,
		Login:    user.Login,
		ClientID: user.ClientID,
	})
	return nil
}

// Login handles user.login_requested.
func (h *AuthHandler) Login(ctx context.Context, event events.Event) *common.AppError {
	var req model.LoginRequest
	if err := decode(event, &req, "login"); err != nil {
		return err
	}

	user, tokens, err := h.service.Login(ctx, req.Login, req.Password)
	if err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.UserAuthenticated, event.ID, events.UserAuthenticatedEvent{
		UserID:    user.ID,
		Login:     user.Login,
		TokenPair: *tokens,
	})
	return nil
}

// Refresh handles user.refresh_requested.
func (h *AuthHandler) Refresh(ctx context.Context, event events.Event) *common.AppError {
	var req model.RefreshRequest
	if err := decode(event, &req, "refresh"); err != nil {
		return err
	}

	tokens, err := h.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.TokenRefreshed, event.ID, tokens)
	return nil
}

// Logout handles user.logout_requested for the user of the access token.
func (h *AuthHandler) Logout(ctx context.Context, event events.Event) *common.AppError {
	userID, appErr := authenticatedUser(ctx)
	if appErr != nil {
		return appErr
	}
	if err := h.service.Logout(ctx, userID); err != nil {
		return Classify(err)
	}
	publish(ctx, h.publisher, events.UserLoggedOut, event.ID, events.UserLoggedOutEvent{UserID: userID})
	return nil
}
