package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingEvent describes a committed ledger mutation.
type BillingEvent struct {
	Action     ActivityAction  `json:"action"`
	Billing    Billing         `json:"billing"`
	Actor      Actor           `json:"actor"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurredAt"`
}
