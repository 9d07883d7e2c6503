package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArrearsRow is a past-due open billing joined with its directory data.
type ArrearsRow struct {
	BillingID         string          `db:"billing_id"`
	BillNumber        string          `db:"bill_number"`
	StudentID         string          `db:"student_id"`
	StudentName       string          `db:"student_name"`
	StudentNIS        string          `db:"student_nis"`
	StudentPhone      string          `db:"student_phone"`
	AcademicYearID    string          `db:"academic_year_id"`
	AcademicYearLabel string          `db:"academic_year_label"`
	Type              BillingType     `db:"type"`
	Month             int             `db:"month"`
	Year              int             `db:"year"`
	TotalAmount       decimal.Decimal `db:"total_amount"`
	PaidAmount        decimal.Decimal `db:"paid_amount"`
	DueDate           time.Time       `db:"due_date"`
	Status            BillingStatus   `db:"status"`
}

// InstallmentReportRow is one installment of a billing that allows installments.
type InstallmentReportRow struct {
	InstallmentID     string          `db:"installment_id"`
	BillingID         string          `db:"billing_id"`
	BillNumber        string          `db:"bill_number"`
	StudentID         string          `db:"student_id"`
	StudentName       string          `db:"student_name"`
	StudentNIS        string          `db:"student_nis"`
	AcademicYearID    string          `db:"academic_year_id"`
	AcademicYearLabel string          `db:"academic_year_label"`
	InstallmentNo     int             `db:"installment_no"`
	Amount            decimal.Decimal `db:"amount"`
	PaidAmount        decimal.Decimal `db:"paid_amount"`
	DueDate           time.Time       `db:"due_date"`
	PaidAt            *time.Time      `db:"paid_at"`
	IsPaid            bool            `db:"is_paid"`
	BillingStatus     BillingStatus   `db:"billing_status"`
}
