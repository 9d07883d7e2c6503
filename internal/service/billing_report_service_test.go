package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type reportStoreStub struct {
	arrears      []models.ArrearsRow
	installments []models.InstallmentReportRow
	err          error
	arrearsCalls int
	gotYear      string
	gotNow       time.Time
}

func (s *reportStoreStub) ArrearsRows(ctx context.Context, academicYearID string, now time.Time) ([]models.ArrearsRow, error) {
	s.arrearsCalls++
	s.gotYear = academicYearID
	s.gotNow = now
	if s.err != nil {
		return nil, s.err
	}
	var out []models.ArrearsRow
	for _, row := range s.arrears {
		if row.DueDate.Before(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *reportStoreStub) InstallmentRows(ctx context.Context, academicYearID string) ([]models.InstallmentReportRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.installments, nil
}

type memCacheRepo struct {
	mu      sync.Mutex
	entries map[string]interface{}
	deleted []string
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{entries: map[string]interface{}{}}
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *dto.ArrearsReport:
		*d = *value.(*dto.ArrearsReport)
	case *dto.InstallmentReport:
		*d = *value.(*dto.InstallmentReport)
	default:
		return errors.New("unsupported type")
	}
	return nil
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func arrearsRow(id, student string, total, paid int64, due time.Time) models.ArrearsRow {
	return models.ArrearsRow{
		BillingID:   id,
		BillNumber:  "INV/" + id,
		StudentID:   student,
		StudentName: "Student " + student,
		Type:        models.BillingTypeTuition,
		Month:       3,
		Year:        2024,
		TotalAmount: amount(total),
		PaidAmount:  amount(paid),
		DueDate:     due,
		Status:      models.BillingStatusBilled,
	}
}

func newTestReportService(store *reportStoreStub, cache reportCache) *BillingReportService {
	return NewBillingReportService(BillingReportServiceParams{
		Store: store,
		Cache: cache,
		Clock: clock.NewFixed(testNow),
		TTL:   time.Minute,
	})
}

func TestArrearsReportSingleOverdueBilling(t *testing.T) {
	store := &reportStoreStub{arrears: []models.ArrearsRow{
		arrearsRow("b1", "s1", 300000, 0, testNow.AddDate(0, 0, -1)),
		arrearsRow("b2", "s2", 300000, 0, testNow.AddDate(0, 0, 1)),
	}}
	svc := newTestReportService(store, nil)

	report, err := svc.ArrearsReport(context.Background(), dto.ArrearsReportQuery{})
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, "b1", item.BillingID)
	assert.True(t, item.RemainingAmount.Equal(amount(300000)))
	assert.Equal(t, 1, item.DaysOverdue)
	assert.Equal(t, models.BillingStatusOverdue, item.Status)
	assert.Equal(t, 1, report.Summary.TotalStudents)
	assert.Equal(t, 1, report.Summary.TotalOverdueBillings)
	assert.True(t, report.Summary.TotalRemaining.Equal(amount(300000)))
	assert.Equal(t, testNow, report.GeneratedAt)
	assert.Equal(t, testNow, store.gotNow)
}

func TestArrearsReportOrdersAndAggregates(t *testing.T) {
	store := &reportStoreStub{arrears: []models.ArrearsRow{
		arrearsRow("b1", "s1", 100000, 40000, testNow.AddDate(0, 0, -3)),
		arrearsRow("b2", "s1", 200000, 0, testNow.AddDate(0, 0, -30)),
		arrearsRow("b3", "s2", 50000, 10000, testNow.Add(-2*time.Hour)),
	}}
	svc := newTestReportService(store, nil)

	report, err := svc.ArrearsReport(context.Background(), dto.ArrearsReportQuery{AcademicYearID: "ay-2024"})
	require.NoError(t, err)
	require.Len(t, report.Items, 3)
	assert.Equal(t, []string{"b2", "b1", "b3"}, []string{report.Items[0].BillingID, report.Items[1].BillingID, report.Items[2].BillingID})
	assert.Equal(t, 30, report.Items[0].DaysOverdue)
	assert.Equal(t, 0, report.Items[2].DaysOverdue)
	assert.Equal(t, 2, report.Summary.TotalStudents)
	assert.True(t, report.Summary.TotalArrears.Equal(amount(350000)))
	assert.True(t, report.Summary.TotalRemaining.Equal(amount(300000)))
	assert.Equal(t, "ay-2024", store.gotYear)
}

func TestArrearsReportEmpty(t *testing.T) {
	svc := newTestReportService(&reportStoreStub{}, nil)
	report, err := svc.ArrearsReport(context.Background(), dto.ArrearsReportQuery{})
	require.NoError(t, err)
	assert.NotNil(t, report.Items)
	assert.Empty(t, report.Items)
	assert.True(t, report.Summary.TotalArrears.IsZero())
}

func TestArrearsReportStoreFailure(t *testing.T) {
	svc := newTestReportService(&reportStoreStub{err: errors.New("db down")}, nil)
	_, err := svc.ArrearsReport(context.Background(), dto.ArrearsReportQuery{})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrPersistence))
}

func TestArrearsReportCachesUntilLedgerChanges(t *testing.T) {
	store := &reportStoreStub{arrears: []models.ArrearsRow{arrearsRow("b1", "s1", 100, 0, testNow.AddDate(0, 0, -1))}}
	repo := newMemCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := newTestReportService(store, cache)

	_, err := svc.ArrearsReport(context.Background(), dto.ArrearsReportQuery{})
	require.NoError(t, err)
	_, err = svc.ArrearsReport(context.Background(), dto.ArrearsReportQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.arrearsCalls)
	assert.Contains(t, repo.entries, "billing-reports:arrears:2024-03-15:all")

	svc.OnBillingCommitted(context.Background(), models.BillingEvent{Action: models.ActivityRecordPayment})
	assert.Equal(t, []string{ReportCachePattern}, repo.deleted)

	_, err = svc.ArrearsReport(context.Background(), dto.ArrearsReportQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.arrearsCalls)
}

func installmentRow(id string, no int, paid bool, due time.Time) models.InstallmentReportRow {
	row := models.InstallmentReportRow{
		InstallmentID: id,
		BillingID:     "b1",
		BillNumber:    "INV/b1",
		StudentID:     "s1",
		InstallmentNo: no,
		Amount:        amount(100000),
		PaidAmount:    amount(0),
		DueDate:       due,
		IsPaid:        paid,
	}
	if paid {
		row.PaidAmount = amount(100000)
	}
	return row
}

func TestInstallmentReportClassifies(t *testing.T) {
	store := &reportStoreStub{installments: []models.InstallmentReportRow{
		installmentRow("i1", 1, true, testNow.AddDate(0, -1, 0)),
		installmentRow("i2", 2, false, testNow.AddDate(0, 0, -1)),
		installmentRow("i3", 3, false, testNow.AddDate(0, 1, 0)),
	}}
	svc := newTestReportService(store, nil)

	report, err := svc.InstallmentReport(context.Background(), dto.InstallmentReportQuery{})
	require.NoError(t, err)
	require.Len(t, report.Items, 3)
	assert.Equal(t, models.InstallmentStatusPaid, report.Items[0].Status)
	assert.Equal(t, models.InstallmentStatusOverdue, report.Items[1].Status)
	assert.Equal(t, models.InstallmentStatusUnpaid, report.Items[2].Status)
	assert.Equal(t, 3, report.Summary.TotalInstallments)
	assert.True(t, report.Summary.TotalAmount.Equal(amount(300000)))
	assert.True(t, report.Summary.TotalPaidAmount.Equal(amount(100000)))
	assert.Equal(t, 1, report.Summary.Paid.Count)
	assert.Equal(t, 1, report.Summary.Overdue.Count)
	assert.Equal(t, 1, report.Summary.Unpaid.Count)
}

func TestInstallmentReportStatusFilter(t *testing.T) {
	store := &reportStoreStub{installments: []models.InstallmentReportRow{
		installmentRow("i1", 1, true, testNow.AddDate(0, -1, 0)),
		installmentRow("i2", 2, false, testNow.AddDate(0, 0, -1)),
		installmentRow("i3", 3, false, testNow.AddDate(0, 1, 0)),
	}}
	svc := newTestReportService(store, nil)

	report, err := svc.InstallmentReport(context.Background(), dto.InstallmentReportQuery{Status: models.InstallmentStatusOverdue})
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, "i2", report.Items[0].InstallmentID)
	assert.Equal(t, 1, report.Summary.TotalInstallments)
	assert.Equal(t, 0, report.Summary.Paid.Count)

	_, err = svc.InstallmentReport(context.Background(), dto.InstallmentReportQuery{Status: "LATE"})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrInvalidArgument))
}

func TestInstallmentReportFollowsBillingStatus(t *testing.T) {
	settled := installmentRow("i1", 3, false, testNow.AddDate(0, -1, 0))
	settled.PaidAmount = amount(50000)
	settled.BillingStatus = models.BillingStatusPaid
	waived := installmentRow("i2", 1, false, testNow.AddDate(0, -2, 0))
	waived.BillingID = "b2"
	waived.BillingStatus = models.BillingStatusWaived
	open := installmentRow("i3", 1, false, testNow.AddDate(0, 0, -1))
	open.BillingID = "b3"
	open.BillingStatus = models.BillingStatusPartial
	svc := newTestReportService(&reportStoreStub{installments: []models.InstallmentReportRow{settled, waived, open}}, nil)

	report, err := svc.InstallmentReport(context.Background(), dto.InstallmentReportQuery{})
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.Equal(t, "i1", report.Items[0].InstallmentID)
	assert.Equal(t, models.InstallmentStatusPaid, report.Items[0].Status)
	assert.Equal(t, "i3", report.Items[1].InstallmentID)
	assert.Equal(t, models.InstallmentStatusOverdue, report.Items[1].Status)
	assert.Equal(t, 1, report.Summary.Paid.Count)
	assert.Equal(t, 1, report.Summary.Overdue.Count)

	overdue, err := svc.InstallmentReport(context.Background(), dto.InstallmentReportQuery{Status: models.InstallmentStatusOverdue})
	require.NoError(t, err)
	require.Len(t, overdue.Items, 1)
	assert.Equal(t, "i3", overdue.Items[0].InstallmentID)
}

func TestReportCacheTTLIsBounded(t *testing.T) {
	svc := newTestReportService(&reportStoreStub{}, nil)
	assert.Equal(t, time.Minute, svc.cacheTTL(testNow))

	svc.ttl = time.Hour
	assert.Equal(t, maxReportCacheTTL, svc.cacheTTL(testNow))

	svc.ttl = 0
	assert.Equal(t, maxReportCacheTTL, svc.cacheTTL(testNow))

	lateEvening := time.Date(2024, 3, 15, 23, 59, 30, 0, time.UTC)
	assert.Equal(t, 30*time.Second, svc.cacheTTL(lateEvening))
}

func TestReportCacheKey(t *testing.T) {
	assert.Equal(t, "billing-reports:installments:2024-03-15:ay-1:PAID", reportCacheKey("installments", testNow, "ay-1", "PAID"))
	assert.Equal(t, "billing-reports:installments:2024-03-15:all:all", reportCacheKey("installments", testNow, "", ""))
}
