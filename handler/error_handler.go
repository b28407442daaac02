package handler

import (
	"context"
	"errors"

	"eurobank-ledger/common"
	"eurobank-ledger/events"
	"eurobank-ledger/logger"
	"eurobank-ledger/repository"
	"eurobank-ledger/service"

	"github.com/sirupsen/logrus"
)

// CommandFunc handles one command and reports failures as AppError.
type CommandFunc func(ctx context.Context, event events.Event) *common.AppError

// Publisher is satisfied by *events.Publisher.
type Publisher interface {
	Publish(ctx context.Context, eventType, correlationID string, data any) error
}

// ErrorHandlingMiddleware turns a CommandFunc into a stream handler. Business
// failures are published as rejectedType and the command is acknowledged;
// internal failures are returned so the command stays pending.
func ErrorHandlingMiddleware(pub Publisher, rejectedType string, next CommandFunc) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		appErr := next(ctx, event)
		if appErr == nil {
			return nil
		}
		appErr.Log(logrus.Fields{"command": event.Type, "command_id": event.ID})
		if appErr.Code == common.CodeInternal {
			return appErr
		}
		publish(ctx, pub, rejectedType, event.ID, events.RejectedEvent{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Retryable: appErr.Retryable,
		})
		return nil
	}
}

// Classify maps service and store errors onto transport error codes.
func Classify(err error) *common.AppError {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	code, retryable := common.CodeInternal, false
	switch {
	case errors.Is(err, service.ErrInvalidTransfer):
		code = common.CodeInvalidTransfer
	case errors.Is(err, service.ErrAccountNotFound):
		code = common.CodeAccountNotFound
	case errors.Is(err, service.ErrAccountUnavailable):
		code = common.CodeAccountUnavailable
	case errors.Is(err, service.ErrInsufficientFunds):
		code = common.CodeInsufficientFunds
	case errors.Is(err, service.ErrLimitExceeded):
		code = common.CodeLimitExceeded
	case errors.Is(err, service.ErrLockTimeout):
		code, retryable = common.CodeLockTimeout, true
	case errors.Is(err, repository.ErrConflict):
		code, retryable = common.CodeConflict, true
	case errors.Is(err, service.ErrInvalidAccountRequest), errors.Is(err, service.ErrInvalidIBAN),
		errors.Is(err, service.ErrInvalidCardRequest), errors.Is(err, service.ErrInvalidClientRequest):
		code = common.CodeInvalidRequest
	case errors.Is(err, service.ErrUserLocked):
		code = common.CodeUserLocked
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUserInactive), errors.Is(err, service.ErrInvalidToken):
		code = common.CodeUnauthorized
	case errors.Is(err, service.ErrDuplicateClient), errors.Is(err, repository.ErrDuplicateLogin):
		code = common.CodeAlreadyExists
	case errors.Is(err, service.ErrClientNotFound):
		code = common.CodeClientNotFound
	case errors.Is(err, service.ErrCardNotFound):
		code = common.CodeCardNotFound
	case errors.Is(err, service.ErrCardOpposed):
		code = common.CodeCardOpposed
	case errors.Is(err, service.ErrCardUnavailable):
		code = common.CodeCardUnavailable
	}

	if code == common.CodeInternal {
		return &common.AppError{Code: code, Message: "internal error", Retryable: true, Err: err}
	}
	return &common.AppError{Code: code, Message: err.Error(), Retryable: retryable, Err: err}
}

// publish emits an outcome event. A failed publish is logged and swallowed:
// the command has already been applied and must not be replayed.
func publish(ctx context.Context, pub Publisher, eventType, correlationID string, data any) {
	if err := pub.Publish(ctx, eventType, correlationID, data); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"type":           eventType,
			"correlation_id": correlationID,
		}).Error("Failed to publish outcome event")
	}
}
