package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OperationType string

const (
	OperationTransferSent     OperationType = "TRANSFER_SENT"
	OperationTransferReceived OperationType = "TRANSFER_RECEIVED"
	OperationInstantTransfer  OperationType = "INSTANT_TRANSFER"
	OperationDeposit          OperationType = "DEPOSIT"
	OperationWithdrawal       OperationType = "WITHDRAWAL"
	OperationFee              OperationType = "FEE"
)

// OutboundTransferTypes are the operation types counted against the daily
// transfer limit.
var OutboundTransferTypes = []OperationType{OperationTransferSent, OperationInstantTransfer}

type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

type EntryStatus string

const (
	EntryStatusExecuted  EntryStatus = "EXECUTED"
	EntryStatusRejected  EntryStatus = "REJECTED"
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusCancelled EntryStatus = "CANCELLED"
)

// LedgerEntry is one immutable money movement against an account.
type LedgerEntry struct {
	ID               int64           `json:"id"`
	AccountID        int64           `json:"account_id"`
	Reference        string          `json:"reference"`
	OperationType    OperationType   `json:"operation_type"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Direction        Direction       `json:"direction"`
	Label            string          `json:"label"`
	Motif            string          `json:"motif,omitempty"`
	OperationDate    time.Time       `json:"operation_date"`
	ValueDate        time.Time       `json:"value_date"`
	BalanceBefore    decimal.Decimal `json:"balance_before"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	CounterpartyIBAN string          `json:"counterparty_iban"`
	CounterpartyName string          `json:"counterparty_name"`
	Status           EntryStatus     `json:"status"`
	CreatedBy        int64           `json:"created_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
