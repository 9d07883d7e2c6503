package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type billingService interface {
	Create(ctx context.Context, req dto.CreateBillingRequest, actor models.Actor) (*models.Billing, error)
	Get(ctx context.Context, id string) (*dto.BillingDetail, error)
	List(ctx context.Context, query dto.BillingQuery) ([]models.BillingSummary, *models.Pagination, error)
	RecordPayment(ctx context.Context, billingID string, req dto.RecordPaymentRequest, actor models.Actor) (*dto.PaymentResult, error)
	ListDiscounts(ctx context.Context, billingID string) ([]models.BillingDiscount, error)
}

type billingExceptionService interface {
	ApplyDiscount(ctx context.Context, billingID string, req dto.ApplyDiscountRequest, actor models.Actor) (*models.Billing, error)
	WaiveBilling(ctx context.Context, billingID string, req dto.WaiveBillingRequest, actor models.Actor) (*models.Billing, error)
	SetInstallmentPlan(ctx context.Context, billingID string, req dto.SetInstallmentPlanRequest, actor models.Actor) (*dto.InstallmentPlanResult, error)
}

// BillingHandler exposes the billing ledger endpoints.
type BillingHandler struct {
	billings   billingService
	exceptions billingExceptionService
}

// NewBillingHandler builds a new handler.
func NewBillingHandler(billings billingService, exceptions billingExceptionService) *BillingHandler {
	return &BillingHandler{billings: billings, exceptions: exceptions}
}

// Create godoc
// @Summary Issue a billing
// @Tags Billings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBillingRequest true "Billing payload"
// @Success 201 {object} response.Envelope
// @Router /billings [post]
func (h *BillingHandler) Create(c *gin.Context) {
	var req dto.CreateBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid billing payload"))
		return
	}
	billing, err := h.billings.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, billing)
}

// List godoc
// @Summary List billings
// @Tags Billings
// @Produce json
// @Param studentId query string false "Student ID"
// @Param academicYearId query string false "Academic year ID"
// @Param type query string false "Billing type"
// @Param status query string false "BILLED, PARTIAL, PAID, OVERDUE or WAIVED"
// @Param month query int false "Billing month"
// @Param year query int false "Billing year"
// @Param search query string false "Bill number or student name"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /billings [get]
func (h *BillingHandler) List(c *gin.Context) {
	query := dto.BillingQuery{
		StudentID:      c.Query("studentId"),
		AcademicYearID: c.Query("academicYearId"),
		Type:           models.BillingType(strings.ToUpper(c.Query("type"))),
		Status:         models.BillingStatus(strings.ToUpper(c.Query("status"))),
		Search:         c.Query("search"),
	}
	var err error
	for key, dest := range map[string]*int{
		"month":    &query.Month,
		"year":     &query.Year,
		"page":     &query.Page,
		"pageSize": &query.PageSize,
	} {
		if *dest, err = queryInt(c, key); err != nil {
			response.Error(c, err)
			return
		}
	}

	items, pagination, err := h.billings.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a billing with installments and payments
// @Tags Billings
// @Produce json
// @Param id path string true "Billing ID"
// @Success 200 {object} response.Envelope
// @Router /billings/{id} [get]
func (h *BillingHandler) Get(c *gin.Context) {
	detail, err := h.billings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// RecordPayment godoc
// @Summary Post a manually received payment
// @Tags Billings
// @Accept json
// @Produce json
// @Param id path string true "Billing ID"
// @Param payload body dto.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /billings/{id}/payments [post]
func (h *BillingHandler) RecordPayment(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payment payload"))
		return
	}
	result, err := h.billings.RecordPayment(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListDiscounts godoc
// @Summary Discount history of a billing
// @Tags Billings
// @Produce json
// @Param id path string true "Billing ID"
// @Success 200 {object} response.Envelope
// @Router /billings/{id}/discounts [get]
func (h *BillingHandler) ListDiscounts(c *gin.Context) {
	discounts, err := h.billings.ListDiscounts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discounts, nil)
}

// ApplyDiscount godoc
// @Summary Apply a discount to an open billing
// @Tags Billing Exceptions
// @Accept json
// @Produce json
// @Param id path string true "Billing ID"
// @Param payload body dto.ApplyDiscountRequest true "Discount payload"
// @Success 200 {object} response.Envelope
// @Router /billings/{id}/discount [post]
func (h *BillingHandler) ApplyDiscount(c *gin.Context) {
	var req dto.ApplyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid discount payload"))
		return
	}
	billing, err := h.exceptions.ApplyDiscount(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, billing, nil)
}

// Waive godoc
// @Summary Waive the outstanding amount of a billing
// @Tags Billing Exceptions
// @Accept json
// @Produce json
// @Param id path string true "Billing ID"
// @Param payload body dto.WaiveBillingRequest true "Waiver payload"
// @Success 200 {object} response.Envelope
// @Router /billings/{id}/waive [post]
func (h *BillingHandler) Waive(c *gin.Context) {
	var req dto.WaiveBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid waiver payload"))
		return
	}
	billing, err := h.exceptions.WaiveBilling(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, billing, nil)
}

// SetInstallmentPlan godoc
// @Summary Split a billing into monthly installments
// @Tags Billing Exceptions
// @Accept json
// @Produce json
// @Param id path string true "Billing ID"
// @Param payload body dto.SetInstallmentPlanRequest true "Installment plan"
// @Success 200 {object} response.Envelope
// @Router /billings/{id}/installments [post]
func (h *BillingHandler) SetInstallmentPlan(c *gin.Context) {
	var req dto.SetInstallmentPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid installment payload"))
		return
	}
	result, err := h.exceptions.SetInstallmentPlan(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
