package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus classifies an installment for reporting.
type InstallmentStatus string

const (
	InstallmentStatusPaid    InstallmentStatus = "PAID"
	InstallmentStatusUnpaid  InstallmentStatus = "UNPAID"
	InstallmentStatusOverdue InstallmentStatus = "OVERDUE"
)

// Valid reports whether s is a known installment status.
func (s InstallmentStatus) Valid() bool {
	return s == InstallmentStatusPaid || s == InstallmentStatusUnpaid || s == InstallmentStatusOverdue
}

// Installment is one dated sub-payment of a billing's installment plan.
type Installment struct {
	ID            string          `db:"id" json:"id"`
	BillingID     string          `db:"billing_id" json:"billingId"`
	InstallmentNo int             `db:"installment_no" json:"installmentNo"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	DueDate       time.Time       `db:"due_date" json:"dueDate"`
	PaidAmount    decimal.Decimal `db:"paid_amount" json:"paidAmount"`
	PaidAt        *time.Time      `db:"paid_at" json:"paidAt,omitempty"`
	IsPaid        bool            `db:"is_paid" json:"isPaid"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// Remaining returns the unpaid part of the installment.
func (i *Installment) Remaining() decimal.Decimal {
	remaining := i.Amount.Sub(i.PaidAmount)
	if remaining.Sign() < 0 {
		return decimal.Zero
	}
	return remaining
}

// StatusAt classifies the installment as observed at now.
func (i *Installment) StatusAt(now time.Time) InstallmentStatus {
	switch {
	case i.IsPaid:
		return InstallmentStatusPaid
	case i.DueDate.Before(now):
		return InstallmentStatusOverdue
	default:
		return InstallmentStatusUnpaid
	}
}

// ScheduledInstallment is one line of a generated repayment schedule.
type ScheduledInstallment struct {
	InstallmentNo int             `json:"installmentNo"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"dueDate"`
}
