package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/clock"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

// BuildInstallmentSchedule produces count installments of amount, the i-th due
// i calendar months after reference. Each due date is derived from reference
// directly, so a clamped month end never shifts later installments.
func BuildInstallmentSchedule(count int, amount decimal.Decimal, reference time.Time) ([]models.ScheduledInstallment, error) {
	if count < 1 {
		return nil, invalidArgument("installmentCount must be at least 1")
	}
	if !money.IsValidPositive(amount) {
		return nil, invalidArgument("installmentAmount must be a positive amount with at most 2 decimal places")
	}
	schedule := make([]models.ScheduledInstallment, count)
	for i := 1; i <= count; i++ {
		schedule[i-1] = models.ScheduledInstallment{
			InstallmentNo: i,
			Amount:        amount,
			DueDate:       clock.AddMonths(reference, i),
		}
	}
	return schedule, nil
}
