package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

type billingStore interface {
	billingMutator
	Create(ctx context.Context, billing *models.Billing, activity *models.ActivityLog) error
	GetByID(ctx context.Context, id string) (*models.Billing, error)
	List(ctx context.Context, filter models.BillingFilter) ([]models.BillingSummary, int, error)
	ListInstallments(ctx context.Context, billingID string) ([]models.Installment, error)
	ListPayments(ctx context.Context, billingID string) ([]models.Payment, error)
	ListDiscounts(ctx context.Context, billingID string) ([]models.BillingDiscount, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type academicYearDirectory interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
}

// BillingService issues billings, posts payments and serves ledger reads.
type BillingService struct {
	store     billingStore
	students  studentDirectory
	years     academicYearDirectory
	validator *validator.Validate
	logger    *zap.Logger
	opts      ledgerOptions
}

// NewBillingService constructs the billing ledger service.
func NewBillingService(store billingStore, students studentDirectory, years academicYearDirectory, validate *validator.Validate, logger *zap.Logger, opts ...LedgerOption) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		store:     store,
		students:  students,
		years:     years,
		validator: validate,
		logger:    logger,
		opts:      buildLedgerOptions(opts),
	}
}

// Create issues a new billing in BILLED status.
func (s *BillingService) Create(ctx context.Context, req dto.CreateBillingRequest, actor models.Actor) (*models.Billing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.Description = strings.TrimSpace(req.Description)
	req.Type = models.BillingType(strings.ToUpper(strings.TrimSpace(string(req.Type))))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidArgument.Code, appErrors.ErrInvalidArgument.Status, "invalid billing payload")
	}
	if !req.Type.Valid() {
		return nil, invalidArgument("unknown billing type")
	}
	if !money.IsValidPositive(req.TotalAmount) {
		return nil, invalidArgument("totalAmount must be a positive amount with at most 2 decimal places")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, storeError(err, "student not found", "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student is inactive")
	}
	if _, err := s.years.FindByID(ctx, req.AcademicYearID); err != nil {
		return nil, storeError(err, "academic year not found", "failed to load academic year")
	}

	now := s.opts.clock.Now()
	billDate := now
	if req.BillDate != nil && !req.BillDate.IsZero() {
		billDate = *req.BillDate
	}
	if req.DueDate.Before(billDate) {
		return nil, invalidArgument("dueDate must not be before billDate")
	}

	billing := &models.Billing{
		ID:             uuid.NewString(),
		BillNumber:     s.billNumber(req.Year, req.Month),
		StudentID:      req.StudentID,
		AcademicYearID: req.AcademicYearID,
		Type:           req.Type,
		Month:          req.Month,
		Year:           req.Year,
		TotalAmount:    req.TotalAmount,
		PaidAmount:     decimal.Zero,
		Discount:       decimal.Zero,
		DueDate:        req.DueDate,
		BillDate:       billDate,
		Status:         models.BillingStatusBilled,
		Version:        1,
		CreatedByID:    actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Description != "" {
		billing.Description = &req.Description
	}

	activity := newActivity(actor, models.ActivityCreateBilling, billing.ID, map[string]interface{}{
		"billNumber":  billing.BillNumber,
		"studentId":   billing.StudentID,
		"type":        billing.Type,
		"period":      fmt.Sprintf("%04d-%02d", billing.Year, billing.Month),
		"totalBefore": decimal.Zero,
		"totalAfter":  billing.TotalAmount,
		"dueDate":     billing.DueDate,
	}, now)
	if err := s.store.Create(ctx, billing, activity); err != nil {
		s.opts.rejected(models.ActivityCreateBilling, err)
		return nil, storeError(err, "billing not found", "failed to create billing")
	}

	s.opts.committed(ctx, s.logger, models.BillingEvent{
		Action:     models.ActivityCreateBilling,
		Billing:    *billing,
		Actor:      actor,
		Amount:     billing.TotalAmount,
		OccurredAt: now,
	})
	return presentBilling(billing, s.opts), nil
}

// Get returns a billing with its installments and payments.
func (s *BillingService) Get(ctx context.Context, id string) (*dto.BillingDetail, error) {
	billing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "billing not found", "failed to load billing")
	}
	installments, err := s.store.ListInstallments(ctx, id)
	if err != nil {
		return nil, storeError(err, "billing not found", "failed to load installments")
	}
	payments, err := s.store.ListPayments(ctx, id)
	if err != nil {
		return nil, storeError(err, "billing not found", "failed to load payments")
	}
	if installments == nil {
		installments = []models.Installment{}
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return &dto.BillingDetail{
		Billing:      *presentBilling(billing, s.opts),
		Installments: installments,
		Payments:     payments,
	}, nil
}

// List returns billings matching the query with their effective status.
func (s *BillingService) List(ctx context.Context, query dto.BillingQuery) ([]models.BillingSummary, *models.Pagination, error) {
	if query.Type != "" && !query.Type.Valid() {
		return nil, nil, invalidArgument("unknown billing type")
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, nil, invalidArgument("unknown billing status")
	}
	if query.Month < 0 || query.Month > 12 {
		return nil, nil, invalidArgument("month must be between 1 and 12")
	}

	now := s.opts.clock.Now()
	filter := models.BillingFilter{
		StudentID:      query.StudentID,
		AcademicYearID: query.AcademicYearID,
		Type:           query.Type,
		Status:         query.Status,
		Month:          query.Month,
		Year:           query.Year,
		Search:         strings.TrimSpace(query.Search),
		Now:            now,
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "billing not found", "failed to list billings")
	}
	for i := range items {
		items[i].Status = items[i].EffectiveStatus(now)
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// RecordPayment posts a received amount. When the billing has an installment
// plan the amount settles unpaid installments in sequence order.
func (s *BillingService) RecordPayment(ctx context.Context, billingID string, req dto.RecordPaymentRequest, actor models.Actor) (*dto.PaymentResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.Method = models.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(req.Method))))
	req.Reference = strings.TrimSpace(req.Reference)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidArgument.Code, appErrors.ErrInvalidArgument.Status, "invalid payment payload")
	}
	if !req.Method.Valid() {
		return nil, invalidArgument("unknown payment method")
	}
	if !money.IsValidPositive(req.Amount) {
		return nil, invalidArgument("amount must be a positive amount with at most 2 decimal places")
	}

	now := s.opts.clock.Now()
	paidAt := now
	if req.PaidAt != nil && !req.PaidAt.IsZero() {
		if req.PaidAt.After(now) {
			return nil, invalidArgument("paidAt must not be in the future")
		}
		paidAt = *req.PaidAt
	}

	var installments []models.Installment
	change, err := s.store.Mutate(ctx, billingID, func(current *models.Billing, existing []models.Installment) (*repository.BillingChange, error) {
		if err := ensureOpen(current); err != nil {
			return nil, err
		}
		outstanding := current.Outstanding()
		if req.Amount.GreaterThan(outstanding) {
			return nil, invalidArgument(fmt.Sprintf("amount exceeds the outstanding %s", money.Format(outstanding)))
		}

		updated := *current
		updated.PaidAmount = current.PaidAmount.Add(req.Amount)
		updated.Status = updated.SettlementStatus()
		updated.UpdatedAt = now

		installments = append([]models.Installment(nil), existing...)
		var updates []models.Installment
		var allocated, settled []int
		if current.AllowInstallments {
			_, allocated = allocateToInstallments(installments, req.Amount, paidAt)
			if updated.Status == models.BillingStatusPaid {
				settled = settleOpenInstallments(installments, paidAt)
			}
			updates = changedInstallments(existing, installments)
		}

		payment := &models.Payment{
			BillingID:    current.ID,
			Amount:       req.Amount,
			Method:       req.Method,
			PaidAt:       paidAt,
			ReceivedByID: actor.ID,
			CreatedAt:    now,
		}
		if req.Reference != "" {
			payment.Reference = &req.Reference
		}
		if req.Notes != "" {
			payment.Notes = &req.Notes
		}

		return &repository.BillingChange{
			Billing:            &updated,
			InstallmentUpdates: updates,
			Payment:            payment,
			Activity: newActivity(actor, models.ActivityRecordPayment, current.ID, map[string]interface{}{
				"amount":                req.Amount,
				"method":                req.Method,
				"reference":             req.Reference,
				"paidBefore":            current.PaidAmount,
				"paidAfter":             updated.PaidAmount,
				"totalBefore":           current.TotalAmount,
				"totalAfter":            updated.TotalAmount,
				"statusBefore":          current.Status,
				"statusAfter":           updated.Status,
				"allocatedInstallments": allocated,
				"settledInstallments":   settled,
			}, now),
		}, nil
	})
	if err != nil {
		s.opts.rejected(models.ActivityRecordPayment, err)
		return nil, storeError(err, "billing not found", "failed to record payment")
	}

	s.opts.committed(ctx, s.logger, models.BillingEvent{
		Action:     models.ActivityRecordPayment,
		Billing:    *change.Billing,
		Actor:      actor,
		Amount:     req.Amount,
		OccurredAt: now,
	})
	return &dto.PaymentResult{
		Billing:      presentBilling(change.Billing, s.opts),
		Payment:      change.Payment,
		Installments: installments,
	}, nil
}

// ListDiscounts returns the discount history of a billing.
func (s *BillingService) ListDiscounts(ctx context.Context, billingID string) ([]models.BillingDiscount, error) {
	if _, err := s.store.GetByID(ctx, billingID); err != nil {
		return nil, storeError(err, "billing not found", "failed to load billing")
	}
	discounts, err := s.store.ListDiscounts(ctx, billingID)
	if err != nil {
		return nil, storeError(err, "billing not found", "failed to list discounts")
	}
	if discounts == nil {
		discounts = []models.BillingDiscount{}
	}
	return discounts, nil
}

func (s *BillingService) billNumber(year, month int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/%04d%02d/%s", s.opts.numberPrefix, year, month, suffix)
}

// allocateToInstallments spreads amount over unpaid installments in order,
// mutating installments in place. It returns the touched rows and their numbers.
func allocateToInstallments(installments []models.Installment, amount decimal.Decimal, paidAt time.Time) ([]models.Installment, []int) {
	remaining := amount
	var updates []models.Installment
	var numbers []int
	for i := range installments {
		if remaining.Sign() <= 0 {
			break
		}
		inst := &installments[i]
		if inst.IsPaid {
			continue
		}
		take := money.Min(remaining, inst.Remaining())
		if take.Sign() <= 0 {
			continue
		}
		inst.PaidAmount = inst.PaidAmount.Add(take)
		remaining = remaining.Sub(take)
		if !inst.PaidAmount.LessThan(inst.Amount) {
			inst.IsPaid = true
			at := paidAt
			inst.PaidAt = &at
		}
		updates = append(updates, *inst)
		numbers = append(numbers, inst.InstallmentNo)
	}
	return updates, numbers
}

const settledWithBillingNote = "settled with billing"

// settleOpenInstallments closes every installment left open once the billing
// is fully paid, which happens when a discount lowered the total below the
// plan. It returns the numbers of the installments it closed.
func settleOpenInstallments(installments []models.Installment, at time.Time) []int {
	var numbers []int
	for i := range installments {
		inst := &installments[i]
		if inst.IsPaid {
			continue
		}
		inst.IsPaid = true
		paidAt := at
		inst.PaidAt = &paidAt
		note := settledWithBillingNote
		inst.Notes = &note
		numbers = append(numbers, inst.InstallmentNo)
	}
	return numbers
}

// changedInstallments returns the rows of after that differ from before.
func changedInstallments(before, after []models.Installment) []models.Installment {
	var out []models.Installment
	for i := range after {
		if i < len(before) && before[i].IsPaid == after[i].IsPaid && before[i].PaidAmount.Equal(after[i].PaidAmount) {
			continue
		}
		out = append(out, after[i])
	}
	return out
}
