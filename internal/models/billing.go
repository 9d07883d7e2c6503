package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingType enumerates the payment categories a billing can be issued for.
type BillingType string

const (
	BillingTypeTuition      BillingType = "SPP"
	BillingTypeRegistration BillingType = "REGISTRATION"
	BillingTypeUniform      BillingType = "UNIFORM"
	BillingTypeBook         BillingType = "BOOK"
	BillingTypeActivity     BillingType = "ACTIVITY"
	BillingTypeExam         BillingType = "EXAM"
	BillingTypeOther        BillingType = "OTHER"
)

// Valid reports whether t is a known billing type.
func (t BillingType) Valid() bool {
	switch t {
	case BillingTypeTuition, BillingTypeRegistration, BillingTypeUniform, BillingTypeBook,
		BillingTypeActivity, BillingTypeExam, BillingTypeOther:
		return true
	}
	return false
}

// BillingStatus captures the lifecycle of a billing record. OVERDUE is never
// stored; it is derived from BILLED/PARTIAL and the due date at read time.
type BillingStatus string

const (
	BillingStatusBilled  BillingStatus = "BILLED"
	BillingStatusPartial BillingStatus = "PARTIAL"
	BillingStatusPaid    BillingStatus = "PAID"
	BillingStatusOverdue BillingStatus = "OVERDUE"
	BillingStatusWaived  BillingStatus = "WAIVED"
)

// Valid reports whether s is a known status.
func (s BillingStatus) Valid() bool {
	switch s {
	case BillingStatusBilled, BillingStatusPartial, BillingStatusPaid, BillingStatusOverdue, BillingStatusWaived:
		return true
	}
	return false
}

// Billing is one amount owed by one student for one period and type.
type Billing struct {
	ID                string          `db:"id" json:"id"`
	BillNumber        string          `db:"bill_number" json:"billNumber"`
	StudentID         string          `db:"student_id" json:"studentId"`
	AcademicYearID    string          `db:"academic_year_id" json:"academicYearId"`
	Type              BillingType     `db:"type" json:"type"`
	Month             int             `db:"month" json:"month"`
	Year              int             `db:"year" json:"year"`
	TotalAmount       decimal.Decimal `db:"total_amount" json:"totalAmount"`
	PaidAmount        decimal.Decimal `db:"paid_amount" json:"paidAmount"`
	Discount          decimal.Decimal `db:"discount" json:"discount"`
	DiscountReason    *string         `db:"discount_reason" json:"discountReason,omitempty"`
	DueDate           time.Time       `db:"due_date" json:"dueDate"`
	BillDate          time.Time       `db:"bill_date" json:"billDate"`
	Status            BillingStatus   `db:"status" json:"status"`
	WaivedAt          *time.Time      `db:"waived_at" json:"waivedAt,omitempty"`
	WaivedByID        *string         `db:"waived_by_id" json:"waivedById,omitempty"`
	WaivedReason      *string         `db:"waived_reason" json:"waivedReason,omitempty"`
	AllowInstallments bool            `db:"allow_installments" json:"allowInstallments"`
	InstallmentCount  int             `db:"installment_count" json:"installmentCount"`
	InstallmentAmount decimal.Decimal `db:"installment_amount" json:"installmentAmount"`
	Description       *string         `db:"description" json:"description,omitempty"`
	Version           int             `db:"version" json:"version"`
	CreatedByID       string          `db:"created_by_id" json:"createdById"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// Outstanding returns the unpaid remainder of the billing.
func (b *Billing) Outstanding() decimal.Decimal {
	remaining := b.TotalAmount.Sub(b.PaidAmount)
	if remaining.Sign() < 0 {
		return decimal.Zero
	}
	return remaining
}

// IsSettled reports whether the billing is paid or waived.
func (b *Billing) IsSettled() bool {
	return b.Status == BillingStatusPaid || b.Status == BillingStatusWaived
}

// IsOverdue reports whether an open billing has passed its due date.
func (b *Billing) IsOverdue(now time.Time) bool {
	if b.IsSettled() {
		return false
	}
	return b.DueDate.Before(now) && b.PaidAmount.LessThan(b.TotalAmount)
}

// EffectiveStatus is the status as observed at now.
func (b *Billing) EffectiveStatus(now time.Time) BillingStatus {
	if b.IsOverdue(now) {
		return BillingStatusOverdue
	}
	return b.Status
}

// SettlementStatus derives the persisted status from the paid and total amounts.
func (b *Billing) SettlementStatus() BillingStatus {
	switch {
	case b.PaidAmount.Sign() <= 0:
		return BillingStatusBilled
	case b.PaidAmount.LessThan(b.TotalAmount):
		return BillingStatusPartial
	default:
		return BillingStatusPaid
	}
}

// BillingSummary enriches a billing with directory fields for listings.
type BillingSummary struct {
	Billing
	StudentName       string `db:"student_name" json:"studentName"`
	StudentNIS        string `db:"student_nis" json:"studentNis"`
	AcademicYearLabel string `db:"academic_year_label" json:"academicYearLabel"`
}

// BillingFilter constrains billing listings.
type BillingFilter struct {
	StudentID      string
	AcademicYearID string
	Type           BillingType
	Status         BillingStatus
	Month          int
	Year           int
	Search         string
	Now            time.Time
	Page           int
	PageSize       int
}

// BillingDiscount is one increment of a cumulative discount.
type BillingDiscount struct {
	ID          string          `db:"id" json:"id"`
	BillingID   string          `db:"billing_id" json:"billingId"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Reason      string          `db:"reason" json:"reason"`
	TotalBefore decimal.Decimal `db:"total_before" json:"totalBefore"`
	TotalAfter  decimal.Decimal `db:"total_after" json:"totalAfter"`
	AppliedByID string          `db:"applied_by_id" json:"appliedById"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}
