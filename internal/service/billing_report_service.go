package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

// ReportCachePattern matches every cached billing report.
const ReportCachePattern = "billing-reports:*"

// maxReportCacheTTL bounds how long overdue classification can lag the clock.
const maxReportCacheTTL = 5 * time.Minute

type reportStore interface {
	ArrearsRows(ctx context.Context, academicYearID string, now time.Time) ([]models.ArrearsRow, error)
	InstallmentRows(ctx context.Context, academicYearID string) ([]models.InstallmentReportRow, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string) error
}

// BillingReportService derives the arrears and installment views from ledger state.
// It never writes to the ledger.
type BillingReportService struct {
	store   reportStore
	cache   reportCache
	metrics *MetricsService
	clock   clock.Clock
	ttl     time.Duration
	logger  *zap.Logger
}

// BillingReportServiceParams groups constructor dependencies.
type BillingReportServiceParams struct {
	Store   reportStore
	Cache   reportCache
	Metrics *MetricsService
	Clock   clock.Clock
	TTL     time.Duration
	Logger  *zap.Logger
}

// NewBillingReportService constructs the reporting service.
func NewBillingReportService(params BillingReportServiceParams) *BillingReportService {
	if params.Clock == nil {
		params.Clock = clock.NewSystem(nil)
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &BillingReportService{
		store:   params.Store,
		cache:   params.Cache,
		metrics: params.Metrics,
		clock:   params.Clock,
		ttl:     params.TTL,
		logger:  params.Logger,
	}
}

// ArrearsReport lists open billings past their due date, most overdue first.
func (s *BillingReportService) ArrearsReport(ctx context.Context, query dto.ArrearsReportQuery) (*dto.ArrearsReport, error) {
	now := s.clock.Now()
	key := reportCacheKey("arrears", now, query.AcademicYearID)

	var cached dto.ArrearsReport
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	rows, err := s.store.ArrearsRows(ctx, query.AcademicYearID, now)
	s.metrics.ObserveDBQuery("arrears_report", time.Since(start))
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to build arrears report")
	}

	report := buildArrearsReport(rows, now)
	if s.cache != nil {
		s.cache.Set(ctx, key, report, s.cacheTTL(now))
	}
	return report, nil
}

// InstallmentReport classifies installments of installment-enabled billings.
// The summary covers only the returned items.
func (s *BillingReportService) InstallmentReport(ctx context.Context, query dto.InstallmentReportQuery) (*dto.InstallmentReport, error) {
	if query.Status != "" && !query.Status.Valid() {
		return nil, invalidArgument("status must be one of PAID, UNPAID, OVERDUE")
	}
	now := s.clock.Now()
	key := reportCacheKey("installments", now, query.AcademicYearID, string(query.Status))

	var cached dto.InstallmentReport
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	rows, err := s.store.InstallmentRows(ctx, query.AcademicYearID)
	s.metrics.ObserveDBQuery("installment_report", time.Since(start))
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to build installment report")
	}

	report := buildInstallmentReport(rows, query.Status, now)
	if s.cache != nil {
		s.cache.Set(ctx, key, report, s.cacheTTL(now))
	}
	return report, nil
}

// OnBillingCommitted drops cached reports after any ledger mutation.
func (s *BillingReportService) OnBillingCommitted(ctx context.Context, event models.BillingEvent) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ReportCachePattern); err != nil {
		s.logger.Warn("report cache invalidation failed",
			zap.String("billing_id", event.Billing.ID),
			zap.String("action", string(event.Action)),
			zap.Error(err))
	}
}

// cacheTTL caps the configured TTL so a cached report never outlives the day
// in its key and never freezes overdue membership for longer than maxReportCacheTTL.
func (s *BillingReportService) cacheTTL(now time.Time) time.Duration {
	ttl := s.ttl
	if ttl <= 0 || ttl > maxReportCacheTTL {
		ttl = maxReportCacheTTL
	}
	y, m, d := now.Date()
	if untilTomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Sub(now); untilTomorrow < ttl {
		ttl = untilTomorrow
	}
	return ttl
}

func reportCacheKey(kind string, now time.Time, parts ...string) string {
	key := fmt.Sprintf("billing-reports:%s:%s", kind, now.Format("2006-01-02"))
	for _, p := range parts {
		if p == "" {
			p = "all"
		}
		key += ":" + p
	}
	return key
}

func buildArrearsReport(rows []models.ArrearsRow, now time.Time) *dto.ArrearsReport {
	items := make([]dto.ArrearsItem, 0, len(rows))
	students := make(map[string]struct{}, len(rows))
	totalArrears := decimal.Zero
	totalRemaining := decimal.Zero

	for _, row := range rows {
		remaining := row.TotalAmount.Sub(row.PaidAmount)
		items = append(items, dto.ArrearsItem{
			BillingID:         row.BillingID,
			BillNumber:        row.BillNumber,
			StudentID:         row.StudentID,
			StudentName:       row.StudentName,
			StudentNIS:        row.StudentNIS,
			StudentPhone:      row.StudentPhone,
			AcademicYearID:    row.AcademicYearID,
			AcademicYearLabel: row.AcademicYearLabel,
			Type:              row.Type,
			Month:             row.Month,
			Year:              row.Year,
			TotalAmount:       row.TotalAmount,
			PaidAmount:        row.PaidAmount,
			RemainingAmount:   remaining,
			DueDate:           row.DueDate,
			DaysOverdue:       clock.DaysBetween(row.DueDate, now),
			Status:            models.BillingStatusOverdue,
		})
		students[row.StudentID] = struct{}{}
		totalArrears = totalArrears.Add(row.TotalAmount)
		totalRemaining = totalRemaining.Add(remaining)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DaysOverdue != items[j].DaysOverdue {
			return items[i].DaysOverdue > items[j].DaysOverdue
		}
		return items[i].BillNumber < items[j].BillNumber
	})

	return &dto.ArrearsReport{
		Summary: dto.ArrearsSummary{
			TotalStudents:        len(students),
			TotalOverdueBillings: len(items),
			TotalArrears:         totalArrears,
			TotalRemaining:       totalRemaining,
		},
		Items:       items,
		GeneratedAt: now,
	}
}

func buildInstallmentReport(rows []models.InstallmentReportRow, status models.InstallmentStatus, now time.Time) *dto.InstallmentReport {
	items := make([]dto.InstallmentReportItem, 0, len(rows))
	summary := dto.InstallmentReportSummary{
		TotalAmount:     decimal.Zero,
		TotalPaidAmount: decimal.Zero,
		Paid:            dto.InstallmentBucket{Amount: decimal.Zero},
		Unpaid:          dto.InstallmentBucket{Amount: decimal.Zero},
		Overdue:         dto.InstallmentBucket{Amount: decimal.Zero},
	}

	for _, row := range rows {
		if row.BillingStatus == models.BillingStatusWaived {
			continue
		}
		// A settled billing closes its plan even when a row was left open.
		inst := models.Installment{IsPaid: row.IsPaid || row.BillingStatus == models.BillingStatusPaid, DueDate: row.DueDate}
		classified := inst.StatusAt(now)
		if status != "" && classified != status {
			continue
		}
		items = append(items, dto.InstallmentReportItem{
			InstallmentID:     row.InstallmentID,
			BillingID:         row.BillingID,
			BillNumber:        row.BillNumber,
			StudentID:         row.StudentID,
			StudentName:       row.StudentName,
			StudentNIS:        row.StudentNIS,
			AcademicYearID:    row.AcademicYearID,
			AcademicYearLabel: row.AcademicYearLabel,
			InstallmentNo:     row.InstallmentNo,
			Amount:            row.Amount,
			PaidAmount:        row.PaidAmount,
			DueDate:           row.DueDate,
			PaidAt:            row.PaidAt,
			Status:            classified,
		})

		summary.TotalInstallments++
		summary.TotalAmount = summary.TotalAmount.Add(row.Amount)
		summary.TotalPaidAmount = summary.TotalPaidAmount.Add(row.PaidAmount)
		var bucket *dto.InstallmentBucket
		switch classified {
		case models.InstallmentStatusPaid:
			bucket = &summary.Paid
		case models.InstallmentStatusOverdue:
			bucket = &summary.Overdue
		default:
			bucket = &summary.Unpaid
		}
		bucket.Count++
		bucket.Amount = bucket.Amount.Add(row.Amount)
	}

	return &dto.InstallmentReport{Summary: summary, Items: items, GeneratedAt: now}
}
