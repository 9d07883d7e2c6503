package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type billingReportService interface {
	ArrearsReport(ctx context.Context, query dto.ArrearsReportQuery) (*dto.ArrearsReport, error)
	InstallmentReport(ctx context.Context, query dto.InstallmentReportQuery) (*dto.InstallmentReport, error)
}

type arrearsExporter interface {
	ExportArrears(ctx context.Context, query dto.ArrearsReportQuery, format dto.ReportFormat) (*service.ExportFile, error)
}

// ReportHandler serves the arrears and installment reports.
type ReportHandler struct {
	reports  billingReportService
	exporter arrearsExporter
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(reports billingReportService, exporter arrearsExporter) *ReportHandler {
	return &ReportHandler{reports: reports, exporter: exporter}
}

// Arrears godoc
// @Summary Overdue billings with outstanding balances
// @Tags Reports
// @Produce json
// @Param academicYearId query string false "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /reports/arrears [get]
func (h *ReportHandler) Arrears(c *gin.Context) {
	report, err := h.reports.ArrearsReport(c.Request.Context(), dto.ArrearsReportQuery{AcademicYearID: c.Query("academicYearId")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportArrears godoc
// @Summary Download the arrears report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param academicYearId query string false "Academic year ID"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /reports/arrears/export [get]
func (h *ReportHandler) ExportArrears(c *gin.Context) {
	query := dto.ArrearsReportQuery{AcademicYearID: c.Query("academicYearId")}
	file, err := h.exporter.ExportArrears(c.Request.Context(), query, dto.ReportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Installments godoc
// @Summary Installment status report
// @Tags Reports
// @Produce json
// @Param academicYearId query string false "Academic year ID"
// @Param status query string false "PAID, UNPAID or OVERDUE"
// @Success 200 {object} response.Envelope
// @Router /reports/installments [get]
func (h *ReportHandler) Installments(c *gin.Context) {
	query := dto.InstallmentReportQuery{
		AcademicYearID: c.Query("academicYearId"),
		Status:         models.InstallmentStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
	}
	report, err := h.reports.InstallmentReport(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
