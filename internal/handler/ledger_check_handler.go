package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type ledgerChecker interface {
	Check(ctx context.Context, academicYearID string) (*models.LedgerCheckReport, error)
}

// LedgerCheckHandler exposes the ledger integrity scan.
type LedgerCheckHandler struct {
	checker ledgerChecker
}

// NewLedgerCheckHandler constructs the handler.
func NewLedgerCheckHandler(checker ledgerChecker) *LedgerCheckHandler {
	return &LedgerCheckHandler{checker: checker}
}

// Check godoc
// @Summary Verify ledger invariants
// @Tags Billing Integrity
// @Produce json
// @Param academicYearId query string false "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /billing-integrity [get]
func (h *LedgerCheckHandler) Check(c *gin.Context) {
	report, err := h.checker.Check(c.Request.Context(), c.Query("academicYearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{"healthy": report.Healthy()})
}
