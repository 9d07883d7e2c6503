package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type ledgerSnapshotStub struct {
	billings     []models.Billing
	installments []models.Installment
	billingsErr  error
	gotIDs       []string
}

func (s *ledgerSnapshotStub) ListForCheck(ctx context.Context, academicYearID string) ([]models.Billing, error) {
	return s.billings, s.billingsErr
}

func (s *ledgerSnapshotStub) ListInstallmentsByBillingIDs(ctx context.Context, ids []string) ([]models.Installment, error) {
	s.gotIDs = ids
	return s.installments, nil
}

func rules(violations []models.LedgerViolation) []models.LedgerRule {
	out := make([]models.LedgerRule, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Rule)
	}
	return out
}

func TestCheckBillingHealthy(t *testing.T) {
	b := openBilling("b1", 300000, 100000)
	b.AllowInstallments = true
	b.InstallmentCount = 2
	b.InstallmentAmount = amount(150000)
	installments := []models.Installment{
		{BillingID: "b1", InstallmentNo: 2, Amount: amount(150000)},
		{BillingID: "b1", InstallmentNo: 1, Amount: amount(150000)},
	}
	assert.Empty(t, CheckBilling(&b, installments))
}

func TestCheckBillingAmounts(t *testing.T) {
	overpaid := openBilling("b1", 100, 0)
	overpaid.PaidAmount = amount(150)
	overpaid.Status = models.BillingStatusPaid
	assert.Equal(t, []models.LedgerRule{models.RuleOverpaid}, rules(CheckBilling(&overpaid, nil)))

	negative := openBilling("b2", 100, 0)
	negative.TotalAmount = amount(-1)
	assert.Contains(t, rules(CheckBilling(&negative, nil)), models.RuleNegativeTotal)

	storedOverdue := openBilling("b3", 100, 0)
	storedOverdue.Status = models.BillingStatusOverdue
	assert.Equal(t, []models.LedgerRule{models.RuleStatusMismatch}, rules(CheckBilling(&storedOverdue, nil)))
}

func TestCheckBillingWaiverAndDiscount(t *testing.T) {
	waived := openBilling("b1", 100, 0)
	waived.Status = models.BillingStatusWaived
	assert.Equal(t, []models.LedgerRule{models.RuleWaiverIncomplete}, rules(CheckBilling(&waived, nil)))

	discounted := openBilling("b2", 100, 0)
	discounted.Discount = amount(20)
	assert.Equal(t, []models.LedgerRule{models.RuleDiscountWithoutReason}, rules(CheckBilling(&discounted, nil)))
}

func TestCheckBillingInstallments(t *testing.T) {
	noPlan := openBilling("b1", 300, 0)
	assert.Equal(t, []models.LedgerRule{models.RuleInstallmentWithoutPlan},
		rules(CheckBilling(&noPlan, []models.Installment{{InstallmentNo: 1, Amount: amount(100)}})))

	plan := openBilling("b2", 300, 0)
	plan.AllowInstallments = true
	plan.InstallmentCount = 3
	plan.InstallmentAmount = amount(100)
	gap := []models.Installment{
		{InstallmentNo: 1, Amount: amount(100)},
		{InstallmentNo: 3, Amount: amount(100)},
	}
	assert.ElementsMatch(t,
		[]models.LedgerRule{models.RuleInstallmentSequence, models.RuleInstallmentCount, models.RuleInstallmentSum},
		rules(CheckBilling(&plan, gap)))
}

func TestCheckBillingOpenInstallmentOnPaid(t *testing.T) {
	b := openBilling("b1", 250000, 250000)
	b.Discount = amount(50000)
	reason := "sibling"
	b.DiscountReason = &reason
	b.AllowInstallments = true
	b.InstallmentCount = 3
	b.InstallmentAmount = amount(100000)
	installments := []models.Installment{
		{InstallmentNo: 1, Amount: amount(100000), PaidAmount: amount(100000), IsPaid: true},
		{InstallmentNo: 2, Amount: amount(100000), PaidAmount: amount(100000), IsPaid: true},
		{InstallmentNo: 3, Amount: amount(100000), PaidAmount: amount(50000)},
	}
	violations := CheckBilling(&b, installments)
	require.Len(t, violations, 1)
	assert.Equal(t, models.RuleOpenInstallmentOnPaid, violations[0].Rule)
	assert.Contains(t, violations[0].Detail, "[3]")

	installments[2].IsPaid = true
	assert.Empty(t, CheckBilling(&b, installments))
}

func TestLedgerCheckServiceCheck(t *testing.T) {
	healthy := openBilling("b1", 100, 0)
	broken := openBilling("b2", 100, 0)
	broken.Status = models.BillingStatusPaid
	store := &ledgerSnapshotStub{billings: []models.Billing{healthy, broken}}
	svc := NewLedgerCheckService(store, nil, clock.NewFixed(testNow), nil)

	report, err := svc.Check(context.Background(), " ay-2024 ")
	require.NoError(t, err)
	assert.Equal(t, "ay-2024", report.AcademicYearID)
	assert.Equal(t, 2, report.CheckedBillings)
	assert.False(t, report.Healthy())
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "b2", report.Violations[0].BillingID)
	assert.Equal(t, []string{"b1", "b2"}, store.gotIDs)
	assert.Equal(t, testNow, report.CheckedAt)
}

func TestLedgerCheckServiceStoreFailure(t *testing.T) {
	svc := NewLedgerCheckService(&ledgerSnapshotStub{billingsErr: errors.New("down")}, nil, nil, nil)
	_, err := svc.Check(context.Background(), "")
	assert.True(t, appErrors.IsKind(err, appErrors.ErrPersistence))
}
