package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// ReportRepository runs the read-only ledger report queries.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ArrearsRows returns open billings whose due date is before now.
func (r *ReportRepository) ArrearsRows(ctx context.Context, academicYearID string, now time.Time) ([]models.ArrearsRow, error) {
	query := `SELECT b.id AS billing_id, b.bill_number, b.student_id, s.full_name AS student_name, s.nis AS student_nis,
       COALESCE(s.phone, '') AS student_phone, b.academic_year_id, ay.label AS academic_year_label, b.type, b.month, b.year,
       b.total_amount, b.paid_amount, b.due_date, b.status
FROM billings b
JOIN students s ON s.id = b.student_id
JOIN academic_years ay ON ay.id = b.academic_year_id
WHERE b.status IN ('BILLED', 'PARTIAL') AND b.due_date < $1`
	args := []interface{}{now}
	if academicYearID != "" {
		query += " AND b.academic_year_id = $2"
		args = append(args, academicYearID)
	}
	query += " ORDER BY b.due_date ASC, b.bill_number ASC"

	var rows []models.ArrearsRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query arrears: %w", err)
	}
	return rows, nil
}

// InstallmentRows returns every installment of billings that allow installments,
// leaving out waived billings.
func (r *ReportRepository) InstallmentRows(ctx context.Context, academicYearID string) ([]models.InstallmentReportRow, error) {
	query := `SELECT i.id AS installment_id, b.id AS billing_id, b.bill_number, b.student_id, s.full_name AS student_name,
       s.nis AS student_nis, b.academic_year_id, ay.label AS academic_year_label, i.installment_no, i.amount,
       i.paid_amount, i.due_date, i.paid_at, i.is_paid, b.status AS billing_status
FROM billing_installments i
JOIN billings b ON b.id = i.billing_id
JOIN students s ON s.id = b.student_id
JOIN academic_years ay ON ay.id = b.academic_year_id
WHERE b.allow_installments = TRUE AND b.status <> 'WAIVED'`
	args := make([]interface{}, 0, 1)
	if academicYearID != "" {
		query += " AND b.academic_year_id = $1"
		args = append(args, academicYearID)
	}
	query += " ORDER BY i.due_date ASC, b.bill_number ASC, i.installment_no ASC"

	var rows []models.InstallmentReportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query installment report: %w", err)
	}
	return rows, nil
}
