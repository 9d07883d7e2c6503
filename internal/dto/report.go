package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// ReportFormat enumerates downloadable export formats.
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// ArrearsReportQuery filters the arrears report.
type ArrearsReportQuery struct {
	AcademicYearID string `form:"academicYearId"`
}

// ArrearsItem is one past-due billing with its outstanding balance.
type ArrearsItem struct {
	BillingID         string               `json:"billingId"`
	BillNumber        string               `json:"billNumber"`
	StudentID         string               `json:"studentId"`
	StudentName       string               `json:"studentName"`
	StudentNIS        string               `json:"studentNis"`
	StudentPhone      string               `json:"studentPhone"`
	AcademicYearID    string               `json:"academicYearId"`
	AcademicYearLabel string               `json:"academicYearLabel"`
	Type              models.BillingType   `json:"type"`
	Month             int                  `json:"month"`
	Year              int                  `json:"year"`
	TotalAmount       decimal.Decimal      `json:"totalAmount"`
	PaidAmount        decimal.Decimal      `json:"paidAmount"`
	RemainingAmount   decimal.Decimal      `json:"remainingAmount"`
	DueDate           time.Time            `json:"dueDate"`
	DaysOverdue       int                  `json:"daysOverdue"`
	Status            models.BillingStatus `json:"status"`
}

// ArrearsSummary aggregates the arrears items.
type ArrearsSummary struct {
	TotalStudents        int             `json:"totalStudents"`
	TotalOverdueBillings int             `json:"totalOverdueBillings"`
	TotalArrears         decimal.Decimal `json:"totalArrears"`
	TotalRemaining       decimal.Decimal `json:"totalRemaining"`
}

// ArrearsReport is the overdue aggregation view.
type ArrearsReport struct {
	Summary     ArrearsSummary `json:"summary"`
	Items       []ArrearsItem  `json:"items"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// InstallmentReportQuery filters the installment status report.
type InstallmentReportQuery struct {
	AcademicYearID string                   `form:"academicYearId"`
	Status         models.InstallmentStatus `form:"status"`
}

// InstallmentReportItem is one classified installment.
type InstallmentReportItem struct {
	InstallmentID     string                   `json:"installmentId"`
	BillingID         string                   `json:"billingId"`
	BillNumber        string                   `json:"billNumber"`
	StudentID         string                   `json:"studentId"`
	StudentName       string                   `json:"studentName"`
	StudentNIS        string                   `json:"studentNis"`
	AcademicYearID    string                   `json:"academicYearId"`
	AcademicYearLabel string                   `json:"academicYearLabel"`
	InstallmentNo     int                      `json:"installmentNo"`
	Amount            decimal.Decimal          `json:"amount"`
	PaidAmount        decimal.Decimal          `json:"paidAmount"`
	DueDate           time.Time                `json:"dueDate"`
	PaidAt            *time.Time               `json:"paidAt,omitempty"`
	Status            models.InstallmentStatus `json:"status"`
}

// InstallmentBucket counts and sums installments of one status.
type InstallmentBucket struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// InstallmentReportSummary aggregates the returned installments.
type InstallmentReportSummary struct {
	TotalInstallments int               `json:"totalInstallments"`
	TotalAmount       decimal.Decimal   `json:"totalAmount"`
	TotalPaidAmount   decimal.Decimal   `json:"totalPaidAmount"`
	Paid              InstallmentBucket `json:"paid"`
	Unpaid            InstallmentBucket `json:"unpaid"`
	Overdue           InstallmentBucket `json:"overdue"`
}

// InstallmentReport is the installment status view.
type InstallmentReport struct {
	Summary     InstallmentReportSummary `json:"summary"`
	Items       []InstallmentReportItem  `json:"items"`
	GeneratedAt time.Time                `json:"generatedAt"`
}
