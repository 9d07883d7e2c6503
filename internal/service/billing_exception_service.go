package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

// BillingExceptionService applies discounts, waivers and installment plans.
// Every operation validates against the locked billing and writes its audit
// entry in the same transaction.
type BillingExceptionService struct {
	store     billingMutator
	validator *validator.Validate
	logger    *zap.Logger
	opts      ledgerOptions
}

// NewBillingExceptionService constructs the exception engine.
func NewBillingExceptionService(store billingMutator, validate *validator.Validate, logger *zap.Logger, opts ...LedgerOption) *BillingExceptionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingExceptionService{store: store, validator: validate, logger: logger, opts: buildLedgerOptions(opts)}
}

// ApplyDiscount reduces the amount owed. Discounts stack; the discount must stay
// strictly below the outstanding amount so that full exemption goes through a waiver.
func (s *BillingExceptionService) ApplyDiscount(ctx context.Context, billingID string, req dto.ApplyDiscountRequest, actor models.Actor) (*models.Billing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.DiscountReason = strings.TrimSpace(req.DiscountReason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidArgument.Code, appErrors.ErrInvalidArgument.Status, "discountReason is required and limited to 500 characters")
	}
	if !money.IsValidPositive(req.DiscountAmount) {
		return nil, invalidArgument("discountAmount must be a positive amount with at most 2 decimal places")
	}

	now := s.opts.clock.Now()
	change, err := s.store.Mutate(ctx, billingID, func(current *models.Billing, _ []models.Installment) (*repository.BillingChange, error) {
		if err := ensureOpen(current); err != nil {
			return nil, err
		}
		outstanding := current.TotalAmount.Sub(current.PaidAmount)
		if !req.DiscountAmount.LessThan(outstanding) {
			return nil, invalidArgument("discountAmount must be less than the outstanding amount; use a waiver for full exemption")
		}

		updated := *current
		updated.TotalAmount = current.TotalAmount.Sub(req.DiscountAmount)
		updated.Discount = current.Discount.Add(req.DiscountAmount)
		reason := req.DiscountReason
		updated.DiscountReason = &reason
		updated.UpdatedAt = now

		return &repository.BillingChange{
			Billing: &updated,
			Discount: &models.BillingDiscount{
				BillingID:   current.ID,
				Amount:      req.DiscountAmount,
				Reason:      reason,
				TotalBefore: current.TotalAmount,
				TotalAfter:  updated.TotalAmount,
				AppliedByID: actor.ID,
				CreatedAt:   now,
			},
			Activity: newActivity(actor, models.ActivityApplyDiscount, current.ID, map[string]interface{}{
				"discountAmount": req.DiscountAmount,
				"discountReason": reason,
				"totalBefore":    current.TotalAmount,
				"totalAfter":     updated.TotalAmount,
				"discountBefore": current.Discount,
				"discountAfter":  updated.Discount,
				"paidAmount":     current.PaidAmount,
			}, now),
		}, nil
	})
	if err != nil {
		s.opts.rejected(models.ActivityApplyDiscount, err)
		return nil, storeError(err, "billing not found", "failed to apply discount")
	}

	s.opts.committed(ctx, s.logger, models.BillingEvent{
		Action:     models.ActivityApplyDiscount,
		Billing:    *change.Billing,
		Actor:      actor,
		Amount:     req.DiscountAmount,
		OccurredAt: now,
	})
	return presentBilling(change.Billing, s.opts), nil
}

// WaiveBilling exempts the outstanding obligation. Amounts are kept as the historical record.
func (s *BillingExceptionService) WaiveBilling(ctx context.Context, billingID string, req dto.WaiveBillingRequest, actor models.Actor) (*models.Billing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.WaivedReason = strings.TrimSpace(req.WaivedReason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidArgument.Code, appErrors.ErrInvalidArgument.Status, "waivedReason is required and limited to 500 characters")
	}

	now := s.opts.clock.Now()
	change, err := s.store.Mutate(ctx, billingID, func(current *models.Billing, _ []models.Installment) (*repository.BillingChange, error) {
		if err := ensureOpen(current); err != nil {
			return nil, err
		}

		updated := *current
		reason := req.WaivedReason
		actorID := actor.ID
		waivedAt := now
		updated.Status = models.BillingStatusWaived
		updated.WaivedAt = &waivedAt
		updated.WaivedByID = &actorID
		updated.WaivedReason = &reason
		updated.UpdatedAt = now

		return &repository.BillingChange{
			Billing: &updated,
			Activity: newActivity(actor, models.ActivityWaiveBilling, current.ID, map[string]interface{}{
				"waivedReason": reason,
				"statusBefore": current.EffectiveStatus(now),
				"statusAfter":  models.BillingStatusWaived,
				"paidAmount":   current.PaidAmount,
				"waivedAmount": current.Outstanding(),
				"totalBefore":  current.TotalAmount,
				"totalAfter":   updated.TotalAmount,
			}, now),
		}, nil
	})
	if err != nil {
		s.opts.rejected(models.ActivityWaiveBilling, err)
		return nil, storeError(err, "billing not found", "failed to waive billing")
	}

	s.opts.committed(ctx, s.logger, models.BillingEvent{
		Action:     models.ActivityWaiveBilling,
		Billing:    *change.Billing,
		Actor:      actor,
		Amount:     change.Billing.Outstanding(),
		OccurredAt: now,
	})
	return presentBilling(change.Billing, s.opts), nil
}

// SetInstallmentPlan replaces the billing's installment schedule with count
// installments of amount, due monthly from now. A plan whose installments
// already received money cannot be replaced.
func (s *BillingExceptionService) SetInstallmentPlan(ctx context.Context, billingID string, req dto.SetInstallmentPlanRequest, actor models.Actor) (*dto.InstallmentPlanResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidArgument.Code, appErrors.ErrInvalidArgument.Status, "installmentCount must be at least 1")
	}
	if req.InstallmentCount > s.opts.maxInstallments {
		return nil, invalidArgument("installmentCount exceeds the allowed maximum")
	}

	now := s.opts.clock.Now()
	schedule, err := BuildInstallmentSchedule(req.InstallmentCount, req.InstallmentAmount, now)
	if err != nil {
		return nil, err
	}

	change, err := s.store.Mutate(ctx, billingID, func(current *models.Billing, existing []models.Installment) (*repository.BillingChange, error) {
		if err := ensureOpen(current); err != nil {
			return nil, err
		}
		for _, inst := range existing {
			if inst.IsPaid || inst.PaidAmount.Sign() > 0 {
				return nil, appErrors.Clone(appErrors.ErrInvalidState, "existing installment plan has recorded payments and cannot be replaced")
			}
		}

		updated := *current
		updated.AllowInstallments = true
		updated.InstallmentCount = req.InstallmentCount
		updated.InstallmentAmount = req.InstallmentAmount
		updated.UpdatedAt = now

		installments := make([]models.Installment, len(schedule))
		for i, line := range schedule {
			installments[i] = models.Installment{
				BillingID:     current.ID,
				InstallmentNo: line.InstallmentNo,
				Amount:        line.Amount,
				DueDate:       line.DueDate,
				CreatedAt:     now,
			}
		}

		return &repository.BillingChange{
			Billing:             &updated,
			ReplaceInstallments: installments,
			Activity: newActivity(actor, models.ActivitySetInstallment, current.ID, map[string]interface{}{
				"installmentCount":     req.InstallmentCount,
				"installmentAmount":    req.InstallmentAmount,
				"planTotal":            req.InstallmentAmount.Mul(money.FromInt(int64(req.InstallmentCount))),
				"replacedInstallments": len(existing),
				"totalBefore":          current.TotalAmount,
				"totalAfter":           updated.TotalAmount,
				"paidAmount":           current.PaidAmount,
				"firstDueDate":         schedule[0].DueDate,
				"lastDueDate":          schedule[len(schedule)-1].DueDate,
			}, now),
		}, nil
	})
	if err != nil {
		s.opts.rejected(models.ActivitySetInstallment, err)
		return nil, storeError(err, "billing not found", "failed to set installment plan")
	}

	s.opts.committed(ctx, s.logger, models.BillingEvent{
		Action:     models.ActivitySetInstallment,
		Billing:    *change.Billing,
		Actor:      actor,
		Amount:     req.InstallmentAmount,
		OccurredAt: now,
	})
	return &dto.InstallmentPlanResult{
		Billing:      presentBilling(change.Billing, s.opts),
		Installments: change.ReplaceInstallments,
	}, nil
}
