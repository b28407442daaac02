package common

import (
	"eurobank-ledger/logger"

	"github.com/sirupsen/logrus"
)

// Error codes carried on outcome events.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidTransfer    = "INVALID_TRANSFER"
	CodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	CodeAccountUnavailable = "ACCOUNT_UNAVAILABLE"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeLimitExceeded      = "LIMIT_EXCEEDED"
	CodeLockTimeout        = "LOCK_TIMEOUT"
	CodeConflict           = "CONCURRENT_UPDATE"
	CodeUserLocked         = "USER_LOCKED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeClientNotFound     = "CLIENT_NOT_FOUND"
	CodeCardNotFound       = "CARD_NOT_FOUND"
	CodeCardOpposed        = "CARD_OPPOSED"
	CodeCardUnavailable    = "CARD_UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

type AppError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Log records the error with its code; internal errors go out at error level.
func (e *AppError) Log(fields logrus.Fields) {
	log := logger.Log.WithFields(fields).WithFields(logrus.Fields{
		"code":      e.Code,
		"retryable": e.Retryable,
	})
	if e.Err != nil {
		log = log.WithField("internal_error", e.Err.Error())
	}
	if e.Code == CodeInternal {
		log.Error(e.Message)
		return
	}
	log.Warn(e.Message)
}
