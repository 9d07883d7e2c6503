package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

type ledgerSnapshotReader interface {
	ListForCheck(ctx context.Context, academicYearID string) ([]models.Billing, error)
	ListInstallmentsByBillingIDs(ctx context.Context, billingIDs []string) ([]models.Installment, error)
}

// LedgerCheckService scans persisted billings for broken ledger invariants.
type LedgerCheckService struct {
	store   ledgerSnapshotReader
	metrics *MetricsService
	clock   clock.Clock
	logger  *zap.Logger
}

// NewLedgerCheckService constructs the integrity checker.
func NewLedgerCheckService(store ledgerSnapshotReader, metrics *MetricsService, clk clock.Clock, logger *zap.Logger) *LedgerCheckService {
	if clk == nil {
		clk = clock.NewSystem(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerCheckService{store: store, metrics: metrics, clock: clk, logger: logger}
}

// Check verifies every billing, optionally scoped to one academic year.
func (s *LedgerCheckService) Check(ctx context.Context, academicYearID string) (*models.LedgerCheckReport, error) {
	academicYearID = strings.TrimSpace(academicYearID)
	start := time.Now()
	billings, err := s.store.ListForCheck(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load billings for integrity check")
	}

	ids := make([]string, 0, len(billings))
	for _, b := range billings {
		ids = append(ids, b.ID)
	}
	installments, err := s.store.ListInstallmentsByBillingIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load installments for integrity check")
	}
	s.metrics.ObserveDBQuery("ledger_check", time.Since(start))

	byBilling := make(map[string][]models.Installment, len(billings))
	for _, inst := range installments {
		byBilling[inst.BillingID] = append(byBilling[inst.BillingID], inst)
	}

	report := &models.LedgerCheckReport{
		AcademicYearID:  academicYearID,
		CheckedBillings: len(billings),
		Violations:      []models.LedgerViolation{},
		CheckedAt:       s.clock.Now(),
	}
	for i := range billings {
		report.Violations = append(report.Violations, CheckBilling(&billings[i], byBilling[billings[i].ID])...)
	}

	if report.Healthy() {
		s.logger.Info("ledger check passed", zap.Int("billings", report.CheckedBillings))
	} else {
		s.logger.Warn("ledger check found violations",
			zap.Int("billings", report.CheckedBillings),
			zap.Int("violations", len(report.Violations)))
	}
	return report, nil
}

// CheckBilling returns the invariants b and its installments violate.
func CheckBilling(b *models.Billing, installments []models.Installment) []models.LedgerViolation {
	var out []models.LedgerViolation
	add := func(rule models.LedgerRule, format string, args ...interface{}) {
		out = append(out, models.LedgerViolation{
			BillingID:  b.ID,
			BillNumber: b.BillNumber,
			Rule:       rule,
			Detail:     fmt.Sprintf(format, args...),
		})
	}

	if b.TotalAmount.Sign() < 0 {
		add(models.RuleNegativeTotal, "total %s is negative", money.Format(b.TotalAmount))
	}
	if b.PaidAmount.Sign() < 0 {
		add(models.RuleNegativePaid, "paid %s is negative", money.Format(b.PaidAmount))
	}
	if b.PaidAmount.GreaterThan(b.TotalAmount) {
		add(models.RuleOverpaid, "paid %s exceeds total %s", money.Format(b.PaidAmount), money.Format(b.TotalAmount))
	}

	if b.Status == models.BillingStatusWaived {
		if b.WaivedAt == nil || b.WaivedByID == nil || b.WaivedReason == nil || strings.TrimSpace(*b.WaivedReason) == "" {
			add(models.RuleWaiverIncomplete, "waived billing lacks waivedAt, waivedById or waivedReason")
		}
	} else if expected := b.SettlementStatus(); b.Status != expected {
		add(models.RuleStatusMismatch, "stored status %s, amounts imply %s", b.Status, expected)
	}

	if b.Discount.Sign() > 0 && (b.DiscountReason == nil || strings.TrimSpace(*b.DiscountReason) == "") {
		add(models.RuleDiscountWithoutReason, "discount %s has no reason", money.Format(b.Discount))
	}

	if len(installments) == 0 {
		return out
	}
	if !b.AllowInstallments {
		add(models.RuleInstallmentWithoutPlan, "%d installments on a billing without a plan", len(installments))
		return out
	}

	sorted := append([]models.Installment(nil), installments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].InstallmentNo < sorted[j].InstallmentNo })
	for i, inst := range sorted {
		if inst.InstallmentNo != i+1 {
			add(models.RuleInstallmentSequence, "expected installment %d, found %d", i+1, inst.InstallmentNo)
			break
		}
	}
	if len(sorted) != b.InstallmentCount {
		add(models.RuleInstallmentCount, "plan declares %d installments, found %d", b.InstallmentCount, len(sorted))
	}
	sum := decimal.Zero
	var open []int
	for _, inst := range sorted {
		sum = sum.Add(inst.Amount)
		if !inst.IsPaid {
			open = append(open, inst.InstallmentNo)
		}
	}
	if b.Status == models.BillingStatusPaid && len(open) > 0 {
		add(models.RuleOpenInstallmentOnPaid, "paid billing still has open installments %v", open)
	}
	expected := b.InstallmentAmount.Mul(money.FromInt(int64(b.InstallmentCount)))
	if !sum.Equal(expected) {
		add(models.RuleInstallmentSum, "installments sum to %s, plan implies %s", money.Format(sum), money.Format(expected))
	}
	return out
}
