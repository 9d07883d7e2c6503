package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// CreateBillingRequest issues an ad-hoc or periodic charge for a student.
type CreateBillingRequest struct {
	StudentID      string             `json:"studentId" validate:"required"`
	AcademicYearID string             `json:"academicYearId" validate:"required"`
	Type           models.BillingType `json:"type" validate:"required"`
	Month          int                `json:"month" validate:"required,min=1,max=12"`
	Year           int                `json:"year" validate:"required,min=2000,max=2100"`
	TotalAmount    decimal.Decimal    `json:"totalAmount"`
	DueDate        time.Time          `json:"dueDate" validate:"required"`
	BillDate       *time.Time         `json:"billDate"`
	Description    string             `json:"description" validate:"omitempty,max=500"`
}

// ApplyDiscountRequest reduces the amount owed on an open billing.
type ApplyDiscountRequest struct {
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	DiscountReason string          `json:"discountReason" validate:"required,max=500"`
}

// WaiveBillingRequest exempts the outstanding obligation of a billing.
type WaiveBillingRequest struct {
	WaivedReason string `json:"waivedReason" validate:"required,max=500"`
}

// SetInstallmentPlanRequest splits a billing into dated installments.
type SetInstallmentPlanRequest struct {
	InstallmentCount  int             `json:"installmentCount" validate:"required,min=1"`
	InstallmentAmount decimal.Decimal `json:"installmentAmount"`
}

// RecordPaymentRequest posts a manually received payment.
type RecordPaymentRequest struct {
	Amount    decimal.Decimal      `json:"amount"`
	Method    models.PaymentMethod `json:"method" validate:"required"`
	Reference string               `json:"reference" validate:"omitempty,max=100"`
	PaidAt    *time.Time           `json:"paidAt"`
	Notes     string               `json:"notes" validate:"omitempty,max=500"`
}

// BillingQuery mirrors supported listing filters.
type BillingQuery struct {
	StudentID      string
	AcademicYearID string
	Type           models.BillingType
	Status         models.BillingStatus
	Month          int
	Year           int
	Search         string
	Page           int
	PageSize       int
}

// BillingDetail is a billing with its children.
type BillingDetail struct {
	models.Billing
	Installments []models.Installment `json:"installments"`
	Payments     []models.Payment     `json:"payments"`
}

// InstallmentPlanResult is returned after an installment plan is set.
type InstallmentPlanResult struct {
	Billing      *models.Billing      `json:"billing"`
	Installments []models.Installment `json:"installments"`
}

// PaymentResult is returned after a payment is posted.
type PaymentResult struct {
	Billing      *models.Billing      `json:"billing"`
	Payment      *models.Payment      `json:"payment"`
	Installments []models.Installment `json:"installments,omitempty"`
}
