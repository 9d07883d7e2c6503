package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates manual payment channels.
type PaymentMethod string

const (
	PaymentMethodCash           PaymentMethod = "CASH"
	PaymentMethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentMethodVirtualAccount PaymentMethod = "VIRTUAL_ACCOUNT"
	PaymentMethodOther          PaymentMethod = "OTHER"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodVirtualAccount, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is an amount received against a billing.
type Payment struct {
	ID           string          `db:"id" json:"id"`
	BillingID    string          `db:"billing_id" json:"billingId"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Method       PaymentMethod   `db:"method" json:"method"`
	Reference    *string         `db:"reference" json:"reference,omitempty"`
	PaidAt       time.Time       `db:"paid_at" json:"paidAt"`
	ReceivedByID string          `db:"received_by_id" json:"receivedById"`
	Notes        *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}
