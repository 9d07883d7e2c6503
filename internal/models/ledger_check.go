package models

import "time"

// LedgerRule names an invariant verified by the integrity scan.
type LedgerRule string

const (
	RuleNegativeTotal          LedgerRule = "NEGATIVE_TOTAL"
	RuleNegativePaid           LedgerRule = "NEGATIVE_PAID"
	RuleOverpaid               LedgerRule = "PAID_EXCEEDS_TOTAL"
	RuleStatusMismatch         LedgerRule = "STATUS_MISMATCH"
	RuleWaiverIncomplete       LedgerRule = "WAIVER_FIELDS_MISSING"
	RuleDiscountWithoutReason  LedgerRule = "DISCOUNT_WITHOUT_REASON"
	RuleInstallmentSequence    LedgerRule = "INSTALLMENT_SEQUENCE"
	RuleInstallmentCount       LedgerRule = "INSTALLMENT_COUNT"
	RuleInstallmentSum         LedgerRule = "INSTALLMENT_SUM"
	RuleInstallmentWithoutPlan LedgerRule = "INSTALLMENT_WITHOUT_PLAN"
	RuleOpenInstallmentOnPaid  LedgerRule = "OPEN_INSTALLMENT_ON_PAID"
)

// LedgerViolation is one broken invariant on one billing.
type LedgerViolation struct {
	BillingID  string     `json:"billingId"`
	BillNumber string     `json:"billNumber"`
	Rule       LedgerRule `json:"rule"`
	Detail     string     `json:"detail"`
}

// LedgerCheckReport summarises an integrity scan.
type LedgerCheckReport struct {
	AcademicYearID  string            `json:"academicYearId,omitempty"`
	CheckedBillings int               `json:"checkedBillings"`
	Violations      []LedgerViolation `json:"violations"`
	CheckedAt       time.Time         `json:"checkedAt"`
}

// Healthy reports whether the scan found no violations.
func (r *LedgerCheckReport) Healthy() bool {
	return r != nil && len(r.Violations) == 0
}
