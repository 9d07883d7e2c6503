package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type billingServiceMock struct {
	createReq    dto.CreateBillingRequest
	createResp   *models.Billing
	createErr    error
	lastActor    models.Actor
	lastQuery    dto.BillingQuery
	listResp     []models.BillingSummary
	getErr       error
	paymentReq   dto.RecordPaymentRequest
	paymentResp  *dto.PaymentResult
	discountResp []models.BillingDiscount
}

func (m *billingServiceMock) Create(ctx context.Context, req dto.CreateBillingRequest, actor models.Actor) (*models.Billing, error) {
	m.createReq = req
	m.lastActor = actor
	return m.createResp, m.createErr
}

func (m *billingServiceMock) Get(ctx context.Context, id string) (*dto.BillingDetail, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &dto.BillingDetail{Billing: models.Billing{ID: id}}, nil
}

func (m *billingServiceMock) List(ctx context.Context, query dto.BillingQuery) ([]models.BillingSummary, *models.Pagination, error) {
	m.lastQuery = query
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, nil
}

func (m *billingServiceMock) RecordPayment(ctx context.Context, billingID string, req dto.RecordPaymentRequest, actor models.Actor) (*dto.PaymentResult, error) {
	m.paymentReq = req
	m.lastActor = actor
	return m.paymentResp, nil
}

func (m *billingServiceMock) ListDiscounts(ctx context.Context, billingID string) ([]models.BillingDiscount, error) {
	return m.discountResp, nil
}

type exceptionServiceMock struct {
	discountReq dto.ApplyDiscountRequest
	discountErr error
	waiveReq    dto.WaiveBillingRequest
	planReq     dto.SetInstallmentPlanRequest
	billingID   string
	actor       models.Actor
}

func (m *exceptionServiceMock) ApplyDiscount(ctx context.Context, billingID string, req dto.ApplyDiscountRequest, actor models.Actor) (*models.Billing, error) {
	m.billingID, m.discountReq, m.actor = billingID, req, actor
	if m.discountErr != nil {
		return nil, m.discountErr
	}
	return &models.Billing{ID: billingID, TotalAmount: decimal.NewFromInt(400000)}, nil
}

func (m *exceptionServiceMock) WaiveBilling(ctx context.Context, billingID string, req dto.WaiveBillingRequest, actor models.Actor) (*models.Billing, error) {
	m.billingID, m.waiveReq, m.actor = billingID, req, actor
	return &models.Billing{ID: billingID, Status: models.BillingStatusWaived}, nil
}

func (m *exceptionServiceMock) SetInstallmentPlan(ctx context.Context, billingID string, req dto.SetInstallmentPlanRequest, actor models.Actor) (*dto.InstallmentPlanResult, error) {
	m.billingID, m.planReq, m.actor = billingID, req, actor
	return &dto.InstallmentPlanResult{Billing: &models.Billing{ID: billingID}}, nil
}

var treasurerClaims = &models.JWTClaims{UserID: "treasurer-1", Role: models.RoleTreasurer}

func newBillingContext(method, target, body string, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	c.Set(middleware.ContextUserKey, treasurerClaims)
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *appErrors.Error {
	t.Helper()
	var env struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	return env.Error
}

func TestBillingHandlerCreate(t *testing.T) {
	svc := &billingServiceMock{createResp: &models.Billing{ID: "b1"}}
	h := NewBillingHandler(svc, &exceptionServiceMock{})
	c, w := newBillingContext(http.MethodPost, "/billings",
		`{"studentId":"s1","academicYearId":"ay","type":"SPP","month":3,"year":2024,"totalAmount":"500000","dueDate":"2024-03-25T00:00:00Z"}`)

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, svc.createReq.TotalAmount.Equal(decimal.NewFromInt(500000)))
	assert.Equal(t, models.Actor{ID: "treasurer-1", Role: models.RoleTreasurer}, svc.lastActor)
}

func TestBillingHandlerCreateInvalidBody(t *testing.T) {
	h := NewBillingHandler(&billingServiceMock{}, &exceptionServiceMock{})
	c, w := newBillingContext(http.MethodPost, "/billings", `{"studentId":`)

	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrInvalidArgument.Code, decodeError(t, w).Code)
}

func TestBillingHandlerListParsesQuery(t *testing.T) {
	svc := &billingServiceMock{listResp: []models.BillingSummary{{Billing: models.Billing{ID: "b1"}}}}
	h := NewBillingHandler(svc, &exceptionServiceMock{})
	c, w := newBillingContext(http.MethodGet, "/billings?status=overdue&month=3&year=2024&page=2", "")

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BillingStatusOverdue, svc.lastQuery.Status)
	assert.Equal(t, 3, svc.lastQuery.Month)
	assert.Equal(t, 2024, svc.lastQuery.Year)
	assert.Equal(t, 2, svc.lastQuery.Page)

	c, w = newBillingContext(http.MethodGet, "/billings?month=march", "")
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillingHandlerGetNotFound(t *testing.T) {
	h := NewBillingHandler(&billingServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "billing not found")}, &exceptionServiceMock{})
	c, w := newBillingContext(http.MethodGet, "/billings/x", "", gin.Param{Key: "id", Value: "x"})

	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "billing not found", decodeError(t, w).Message)
}

func TestBillingHandlerRecordPayment(t *testing.T) {
	svc := &billingServiceMock{paymentResp: &dto.PaymentResult{Billing: &models.Billing{ID: "b1"}}}
	h := NewBillingHandler(svc, &exceptionServiceMock{})
	c, w := newBillingContext(http.MethodPost, "/billings/b1/payments", `{"amount":150000,"method":"CASH"}`, gin.Param{Key: "id", Value: "b1"})

	h.RecordPayment(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, svc.paymentReq.Amount.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, models.PaymentMethodCash, svc.paymentReq.Method)
}

func TestBillingHandlerApplyDiscount(t *testing.T) {
	exceptions := &exceptionServiceMock{}
	h := NewBillingHandler(&billingServiceMock{}, exceptions)
	c, w := newBillingContext(http.MethodPost, "/billings/b1/discount", `{"discountAmount":"100000","discountReason":"sibling"}`, gin.Param{Key: "id", Value: "b1"})

	h.ApplyDiscount(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b1", exceptions.billingID)
	assert.Equal(t, "sibling", exceptions.discountReq.DiscountReason)
	assert.Equal(t, "treasurer-1", exceptions.actor.ID)
}

func TestBillingHandlerApplyDiscountInvalidState(t *testing.T) {
	exceptions := &exceptionServiceMock{discountErr: appErrors.Clone(appErrors.ErrInvalidState, "billing already waived")}
	h := NewBillingHandler(&billingServiceMock{}, exceptions)
	c, w := newBillingContext(http.MethodPost, "/billings/b1/discount", `{"discountAmount":"1","discountReason":"x"}`, gin.Param{Key: "id", Value: "b1"})

	h.ApplyDiscount(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrInvalidState.Code, decodeError(t, w).Code)
}

func TestBillingHandlerWaiveAndPlan(t *testing.T) {
	exceptions := &exceptionServiceMock{}
	h := NewBillingHandler(&billingServiceMock{}, exceptions)

	c, w := newBillingContext(http.MethodPost, "/billings/b1/waive", `{"waivedReason":"hardship"}`, gin.Param{Key: "id", Value: "b1"})
	h.Waive(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hardship", exceptions.waiveReq.WaivedReason)

	c, w = newBillingContext(http.MethodPost, "/billings/b1/installments", `{"installmentCount":3,"installmentAmount":"100000"}`, gin.Param{Key: "id", Value: "b1"})
	h.SetInstallmentPlan(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, exceptions.planReq.InstallmentCount)
}
