package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardStatusActive       CardStatus = "ACTIVE"
	CardStatusInactive     CardStatus = "INACTIVE"
	CardStatusBlocked      CardStatus = "BLOCKED"
	CardStatusExpired      CardStatus = "EXPIRED"
	CardStatusOpposed      CardStatus = "OPPOSED"
	CardStatusCancelled    CardStatus = "CANCELLED"
	CardStatusInProduction CardStatus = "IN_PRODUCTION"
)

type CardType string

const (
	CardTypeVisaClassic        CardType = "VISA_CLASSIC"
	CardTypeVisaPremier        CardType = "VISA_PREMIER"
	CardTypeVisaInfinite       CardType = "VISA_INFINITE"
	CardTypeMastercardStandard CardType = "MASTERCARD_STANDARD"
	CardTypeMastercardGold     CardType = "MASTERCARD_GOLD"
	CardTypeBusiness           CardType = "BUSINESS"
	CardTypePrepaid            CardType = "PREPAID"
)

type CardNetwork string

const (
	CardNetworkVisa       CardNetwork = "VISA"
	CardNetworkMastercard CardNetwork = "MASTERCARD"
	CardNetworkCB         CardNetwork = "CB"
)

// Card is a payment card attached to one account. Only the masked number and
// a SHA-256 hash of the full number are stored. An opposed card never leaves
// the OPPOSED status.
type Card struct {
	ID                   int64           `json:"id"`
	AccountID            int64           `json:"account_id"`
	MaskedNumber         string          `json:"masked_number"`
	NumberHash           string          `json:"-"`
	Holder               string          `json:"holder"`
	Type                 CardType        `json:"type"`
	Network              CardNetwork     `json:"network"`
	ExpiresOn            time.Time       `json:"expires_on"`
	Status               CardStatus      `json:"status"`
	DailyPaymentLimit    decimal.Decimal `json:"daily_payment_limit"`
	DailyWithdrawalLimit decimal.Decimal `json:"daily_withdrawal_limit"`
	ForeignPayment       bool            `json:"foreign_payment"`
	ForeignWithdrawal    bool            `json:"foreign_withdrawal"`
	OnlinePayment        bool            `json:"online_payment"`
	Contactless          bool            `json:"contactless"`
	Opposed              bool            `json:"opposed"`
	OpposedAt            *time.Time      `json:"opposed_at,omitempty"`
	OppositionReason     string          `json:"opposition_reason,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
