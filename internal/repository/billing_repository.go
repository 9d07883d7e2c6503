package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// ErrVersionConflict is returned when a billing changed between lock and update.
var ErrVersionConflict = errors.New("billing version conflict")

const billingColumns = `b.id, b.bill_number, b.student_id, b.academic_year_id, b.type, b.month, b.year,
       b.total_amount, b.paid_amount, b.discount, b.discount_reason, b.due_date, b.bill_date, b.status,
       b.waived_at, b.waived_by_id, b.waived_reason, b.allow_installments, b.installment_count,
       b.installment_amount, b.description, b.version, b.created_by_id, b.created_at, b.updated_at`

const installmentColumns = `id, billing_id, installment_no, amount, due_date, paid_amount, paid_at, is_paid, notes, created_at`

// BillingChange describes everything a ledger mutation writes in one transaction.
type BillingChange struct {
	Billing *models.Billing
	// ReplaceInstallments, when non-nil, supersedes every existing installment row.
	ReplaceInstallments []models.Installment
	InstallmentUpdates  []models.Installment
	Payment             *models.Payment
	Discount            *models.BillingDiscount
	Activity            *models.ActivityLog
}

// BillingMutation validates the locked billing and returns the change to persist.
type BillingMutation func(current *models.Billing, installments []models.Installment) (*BillingChange, error)

// BillingRepository persists billings and their children.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository constructs the repository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// Create inserts a new billing together with its creation audit entry.
func (r *BillingRepository) Create(ctx context.Context, billing *models.Billing, activity *models.ActivityLog) (err error) {
	if billing.ID == "" {
		billing.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if billing.CreatedAt.IsZero() {
		billing.CreatedAt = now
	}
	if billing.UpdatedAt.IsZero() {
		billing.UpdatedAt = billing.CreatedAt
	}
	if billing.Version == 0 {
		billing.Version = 1
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin billing transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO billings
	(id, bill_number, student_id, academic_year_id, type, month, year, total_amount, paid_amount, discount, discount_reason,
	 due_date, bill_date, status, waived_at, waived_by_id, waived_reason, allow_installments, installment_count,
	 installment_amount, description, version, created_by_id, created_at, updated_at)
	VALUES (:id, :bill_number, :student_id, :academic_year_id, :type, :month, :year, :total_amount, :paid_amount, :discount, :discount_reason,
	 :due_date, :bill_date, :status, :waived_at, :waived_by_id, :waived_reason, :allow_installments, :installment_count,
	 :installment_amount, :description, :version, :created_by_id, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, billing); err != nil {
		return fmt.Errorf("insert billing: %w", err)
	}
	if activity != nil {
		if err = insertActivityLog(ctx, tx, activity); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit billing: %w", err)
	}
	return nil
}

// GetByID fetches a billing by identifier.
func (r *BillingRepository) GetByID(ctx context.Context, id string) (*models.Billing, error) {
	query := fmt.Sprintf("SELECT %s FROM billings b WHERE b.id = $1", billingColumns)
	var billing models.Billing
	if err := r.db.GetContext(ctx, &billing, query, id); err != nil {
		return nil, err
	}
	return &billing, nil
}

// List returns billings matching the filter with directory fields, newest due first.
func (r *BillingRepository) List(ctx context.Context, filter models.BillingFilter) ([]models.BillingSummary, int, error) {
	base := `FROM billings b
        JOIN students s ON s.id = b.student_id
        JOIN academic_years ay ON ay.id = b.academic_year_id`
	args := make([]interface{}, 0, 8)
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("b.student_id = $%d", len(args)))
	}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conditions = append(conditions, fmt.Sprintf("b.academic_year_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("b.type = $%d", len(args)))
	}
	if filter.Month > 0 {
		args = append(args, filter.Month)
		conditions = append(conditions, fmt.Sprintf("b.month = $%d", len(args)))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("b.year = $%d", len(args)))
	}
	if filter.Status != "" {
		now := filter.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		switch filter.Status {
		case models.BillingStatusOverdue:
			args = append(args, now)
			conditions = append(conditions, fmt.Sprintf("b.status IN ('BILLED','PARTIAL') AND b.due_date < $%d", len(args)))
		case models.BillingStatusBilled, models.BillingStatusPartial:
			args = append(args, filter.Status, now)
			conditions = append(conditions, fmt.Sprintf("b.status = $%d AND b.due_date >= $%d", len(args)-1, len(args)))
		default:
			args = append(args, filter.Status)
			conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)))
		}
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(b.bill_number) LIKE $%d OR LOWER(s.full_name) LIKE $%d OR LOWER(s.nis) LIKE $%d)", len(args), len(args), len(args)))
	}
	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, s.nis AS student_nis, ay.label AS academic_year_label
        %s ORDER BY b.due_date DESC, b.bill_number ASC LIMIT %d OFFSET %d`, billingColumns, base, size, offset)

	var billings []models.BillingSummary
	if err := r.db.SelectContext(ctx, &billings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list billings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count billings: %w", err)
	}
	return billings, total, nil
}

// ListForCheck returns every billing, optionally scoped to one academic year.
func (r *BillingRepository) ListForCheck(ctx context.Context, academicYearID string) ([]models.Billing, error) {
	query := fmt.Sprintf("SELECT %s FROM billings b", billingColumns)
	args := make([]interface{}, 0, 1)
	if academicYearID != "" {
		query += " WHERE b.academic_year_id = $1"
		args = append(args, academicYearID)
	}
	query += " ORDER BY b.created_at ASC"

	var billings []models.Billing
	if err := r.db.SelectContext(ctx, &billings, query, args...); err != nil {
		return nil, fmt.Errorf("list billings for check: %w", err)
	}
	return billings, nil
}

// ListInstallments returns the installments of a billing in sequence order.
func (r *BillingRepository) ListInstallments(ctx context.Context, billingID string) ([]models.Installment, error) {
	query := fmt.Sprintf("SELECT %s FROM billing_installments WHERE billing_id = $1 ORDER BY installment_no ASC", installmentColumns)
	var installments []models.Installment
	if err := r.db.SelectContext(ctx, &installments, query, billingID); err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return installments, nil
}

// ListInstallmentsByBillingIDs loads installments for many billings at once.
func (r *BillingRepository) ListInstallmentsByBillingIDs(ctx context.Context, billingIDs []string) ([]models.Installment, error) {
	if len(billingIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM billing_installments WHERE billing_id = ANY($1) ORDER BY billing_id, installment_no ASC", installmentColumns)
	var installments []models.Installment
	if err := r.db.SelectContext(ctx, &installments, query, pq.Array(billingIDs)); err != nil {
		return nil, fmt.Errorf("list installments by billing: %w", err)
	}
	return installments, nil
}

// ListPayments returns payments posted to a billing, oldest first.
func (r *BillingRepository) ListPayments(ctx context.Context, billingID string) ([]models.Payment, error) {
	const query = `SELECT id, billing_id, amount, method, reference, paid_at, received_by_id, notes, created_at
	FROM billing_payments WHERE billing_id = $1 ORDER BY paid_at ASC, created_at ASC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, billingID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// ListDiscounts returns the discount events of a billing, oldest first.
func (r *BillingRepository) ListDiscounts(ctx context.Context, billingID string) ([]models.BillingDiscount, error) {
	const query = `SELECT id, billing_id, amount, reason, total_before, total_after, applied_by_id, created_at
	FROM billing_discounts WHERE billing_id = $1 ORDER BY created_at ASC`
	var discounts []models.BillingDiscount
	if err := r.db.SelectContext(ctx, &discounts, query, billingID); err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	return discounts, nil
}

// Mutate locks the billing, lets fn decide the change and persists it atomically.
// Errors returned by fn are passed through unchanged and nothing is written.
func (r *BillingRepository) Mutate(ctx context.Context, id string, fn BillingMutation) (change *BillingChange, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin billing transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Billing
	lockQuery := fmt.Sprintf("SELECT %s FROM billings b WHERE b.id = $1 FOR UPDATE", billingColumns)
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock billing: %w", err)
	}

	var installments []models.Installment
	installmentQuery := fmt.Sprintf("SELECT %s FROM billing_installments WHERE billing_id = $1 ORDER BY installment_no ASC", installmentColumns)
	if err = tx.SelectContext(ctx, &installments, installmentQuery, id); err != nil {
		return nil, fmt.Errorf("load installments: %w", err)
	}

	change, err = fn(&current, installments)
	if err != nil {
		return nil, err
	}
	if change == nil || change.Billing == nil {
		err = errors.New("billing mutation produced no change")
		return nil, err
	}

	if err = updateBilling(ctx, tx, change.Billing, current.Version); err != nil {
		return nil, err
	}
	if change.ReplaceInstallments != nil {
		if _, err = tx.ExecContext(ctx, "DELETE FROM billing_installments WHERE billing_id = $1", id); err != nil {
			return nil, fmt.Errorf("delete installments: %w", err)
		}
		for i := range change.ReplaceInstallments {
			if err = insertInstallment(ctx, tx, &change.ReplaceInstallments[i]); err != nil {
				return nil, err
			}
		}
	}
	for i := range change.InstallmentUpdates {
		const query = `UPDATE billing_installments SET paid_amount = :paid_amount, paid_at = :paid_at, is_paid = :is_paid, notes = :notes WHERE id = :id`
		if _, err = tx.NamedExecContext(ctx, query, &change.InstallmentUpdates[i]); err != nil {
			return nil, fmt.Errorf("update installment: %w", err)
		}
	}
	if change.Payment != nil {
		if err = insertPayment(ctx, tx, change.Payment); err != nil {
			return nil, err
		}
	}
	if change.Discount != nil {
		if err = insertDiscount(ctx, tx, change.Discount); err != nil {
			return nil, err
		}
	}
	if change.Activity != nil {
		if err = insertActivityLog(ctx, tx, change.Activity); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit billing mutation: %w", err)
	}
	return change, nil
}

func updateBilling(ctx context.Context, tx *sqlx.Tx, billing *models.Billing, expectedVersion int) error {
	const query = `UPDATE billings SET total_amount = :total_amount, paid_amount = :paid_amount, discount = :discount,
	discount_reason = :discount_reason, status = :status, waived_at = :waived_at, waived_by_id = :waived_by_id,
	waived_reason = :waived_reason, allow_installments = :allow_installments, installment_count = :installment_count,
	installment_amount = :installment_amount, version = :next_version, updated_at = :updated_at
	WHERE id = :id AND version = :expected_version`
	result, err := tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                 billing.ID,
		"total_amount":       billing.TotalAmount,
		"paid_amount":        billing.PaidAmount,
		"discount":           billing.Discount,
		"discount_reason":    billing.DiscountReason,
		"status":             billing.Status,
		"waived_at":          billing.WaivedAt,
		"waived_by_id":       billing.WaivedByID,
		"waived_reason":      billing.WaivedReason,
		"allow_installments": billing.AllowInstallments,
		"installment_count":  billing.InstallmentCount,
		"installment_amount": billing.InstallmentAmount,
		"next_version":       expectedVersion + 1,
		"updated_at":         billing.UpdatedAt,
		"expected_version":   expectedVersion,
	})
	if err != nil {
		return fmt.Errorf("update billing: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check billing update rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	billing.Version = expectedVersion + 1
	return nil
}

func insertInstallment(ctx context.Context, tx *sqlx.Tx, installment *models.Installment) error {
	if installment.ID == "" {
		installment.ID = uuid.NewString()
	}
	if installment.CreatedAt.IsZero() {
		installment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO billing_installments (id, billing_id, installment_no, amount, due_date, paid_amount, paid_at, is_paid, notes, created_at)
	VALUES (:id, :billing_id, :installment_no, :amount, :due_date, :paid_amount, :paid_at, :is_paid, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, installment); err != nil {
		return fmt.Errorf("insert installment: %w", err)
	}
	return nil
}

func insertPayment(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO billing_payments (id, billing_id, amount, method, reference, paid_at, received_by_id, notes, created_at)
	VALUES (:id, :billing_id, :amount, :method, :reference, :paid_at, :received_by_id, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func insertDiscount(ctx context.Context, tx *sqlx.Tx, discount *models.BillingDiscount) error {
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	if discount.CreatedAt.IsZero() {
		discount.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO billing_discounts (id, billing_id, amount, reason, total_before, total_after, applied_by_id, created_at)
	VALUES (:id, :billing_id, :amount, :reason, :total_before, :total_after, :applied_by_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, discount); err != nil {
		return fmt.Errorf("insert discount: %w", err)
	}
	return nil
}
