// file: model/request.go

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRequest is the input of one funds transfer. It is never persisted.
// The validate tags carry the request-level bounds checked before the
// executor is reached.
type TransferRequest struct {
	SenderIBAN    string          `json:"sender_iban" validate:"required,iban_format"`
	ReceiverIBAN  string          `json:"receiver_iban" validate:"required,iban_format"`
	ReceiverName  string          `json:"receiver_name" validate:"required,max=140"`
	Amount        decimal.Decimal `json:"amount" validate:"amount"`
	Motif         string          `json:"motif,omitempty" validate:"max=140"`
	ExecutionDate *time.Time      `json:"execution_date,omitempty"`
	Instant       bool            `json:"instant"`
}

// OpenAccountRequest defines the payload for opening a new account.
type OpenAccountRequest struct {
	ClientID       int64            `json:"client_id" validate:"required,gt=0"`
	HolderName     string           `json:"holder_name" validate:"required,max=140"`
	Type           AccountType      `json:"type" validate:"required,oneof=CURRENT SAVINGS JOINT PROFESSIONAL"`
	Currency       string           `json:"currency" validate:"omitempty,len=3,uppercase"`
	OverdraftLimit *decimal.Decimal `json:"overdraft_limit,omitempty"`
}

// HistoryQuery selects a page of ledger entries for one account. Zero dates
// fall back to the last three months.
type HistoryQuery struct {
	IBAN          string        `json:"iban" validate:"required,iban_format"`
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	OperationType OperationType `json:"operation_type,omitempty"`
	Page          int           `json:"page" validate:"gte=0"`
	Size          int           `json:"size" validate:"gte=0,lte=200"`
}

// LoginRequest defines the credentials checked by the login guard.
type LoginRequest struct {
	Login    string `json:"login" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterRequest creates a login for an existing client.
type RegisterRequest struct {
	Login    string `json:"login" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
	ClientID int64  `json:"client_id" validate:"gte=0"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// CreateClientRequest defines the payload for registering a new client.
type CreateClientRequest struct {
	Title      string     `json:"title" validate:"required,oneof=MR MRS MX"`
	LastName   string     `json:"last_name" validate:"required,max=100"`
	FirstName  string     `json:"first_name" validate:"required,max=100"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Email      string     `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string     `json:"phone,omitempty" validate:"max=20"`
	Address    string     `json:"address,omitempty" validate:"max=255"`
	PostalCode string     `json:"postal_code,omitempty" validate:"max=10"`
	City       string     `json:"city,omitempty" validate:"max=100"`
	Country    string     `json:"country,omitempty" validate:"max=50"`
}

// ClientSearchQuery matches clients by name or client number.
type ClientSearchQuery struct {
	Term string `json:"term" validate:"required,min=2"`
	Page int    `json:"page" validate:"gte=0"`
	Size int    `json:"size" validate:"gte=0,lte=200"`
}

// IssueCardRequest attaches a new card to an account.
type IssueCardRequest struct {
	IBAN    string      `json:"iban" validate:"required,iban_format"`
	Holder  string      `json:"holder" validate:"required,max=26"`
	Type    CardType    `json:"type" validate:"required,oneof=VISA_CLASSIC VISA_PREMIER VISA_INFINITE MASTERCARD_STANDARD MASTERCARD_GOLD BUSINESS PREPAID"`
	Network CardNetwork `json:"network" validate:"required,oneof=VISA MASTERCARD CB"`
}

// CardOptionsRequest changes card options; nil fields are left untouched.
type CardOptionsRequest struct {
	CardID               int64            `json:"card_id" validate:"required,gt=0"`
	ForeignPayment       *bool            `json:"foreign_payment,omitempty"`
	ForeignWithdrawal    *bool            `json:"foreign_withdrawal,omitempty"`
	OnlinePayment        *bool            `json:"online_payment,omitempty"`
	Contactless          *bool            `json:"contactless,omitempty"`
	DailyPaymentLimit    *decimal.Decimal `json:"daily_payment_limit,omitempty"`
	DailyWithdrawalLimit *decimal.Decimal `json:"daily_withdrawal_limit,omitempty"`
}

// OppositionRequest permanently stops a card.
type OppositionRequest struct {
	CardID int64  `json:"card_id" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,max=255"`
}

// CardRef names one card.
type CardRef struct {
	CardID int64 `json:"card_id" validate:"required,gt=0"`
}

// AccountRef names one account by IBAN.
type AccountRef struct {
	IBAN string `json:"iban" validate:"required,iban_format"`
}

// ClientRef names one client.
type ClientRef struct {
	ClientID int64 `json:"client_id" validate:"required,gt=0"`
}
