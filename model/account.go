package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
	AccountStatusBlocked  AccountStatus = "BLOCKED"
	AccountStatusSeized   AccountStatus = "SEIZED"
	AccountStatusClosing  AccountStatus = "CLOSING"
	AccountStatusClosed   AccountStatus = "CLOSED"
)

type AccountType string

const (
	AccountTypeCurrent      AccountType = "CURRENT"
	AccountTypeSavings      AccountType = "SAVINGS"
	AccountTypeJoint        AccountType = "JOINT"
	AccountTypeProfessional AccountType = "PROFESSIONAL"
)

// Account is one bank account. AvailableBalance is persisted next to Balance
// and moved by the same amount on every mutation; OverdraftLimit is added on
// top of it when authorising a debit.
type Account struct {
	ID               int64           `json:"id"`
	ClientID         int64           `json:"client_id"`
	AccountNumber    string          `json:"account_number"`
	IBAN             string          `json:"iban"`
	BIC              string          `json:"bic"`
	HolderName       string          `json:"holder_name"`
	Type             AccountType     `json:"type"`
	Currency         string          `json:"currency"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	OverdraftLimit   decimal.Decimal `json:"overdraft_limit"`
	Status           AccountStatus   `json:"status"`
	OpenedOn         time.Time       `json:"opened_on"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Spendable is the amount a debit may consume: available balance plus the
// authorised overdraft.
func (a *Account) Spendable() decimal.Decimal {
	return a.AvailableBalance.Add(a.OverdraftLimit)
}

// ClientAccounts lists the accounts of one client. GlobalBalance only counts
// ACTIVE accounts.
type ClientAccounts struct {
	ClientID      int64           `json:"client_id"`
	Accounts      []*Account      `json:"accounts"`
	GlobalBalance decimal.Decimal `json:"global_balance"`
}
