package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/pkg/export"
	"github.com/noah-isme/sma-billing-api/pkg/money"
)

type arrearsSource interface {
	ArrearsReport(ctx context.Context, query dto.ArrearsReportQuery) (*dto.ArrearsReport, error)
}

// ExportFile is a rendered report ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the arrears report into downloadable documents.
type ExportService struct {
	reports   arrearsSource
	renderers map[dto.ReportFormat]export.Renderer
	logger    *zap.Logger
}

var arrearsHeaders = []string{"Bill Number", "NIS", "Student", "Phone", "Academic Year", "Type", "Period", "Due Date", "Days Overdue", "Total", "Paid", "Remaining"}

// NewExportService constructs an ExportService with CSV, PDF and XLSX renderers.
func NewExportService(reports arrearsSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		reports: reports,
		renderers: map[dto.ReportFormat]export.Renderer{
			dto.ReportFormatCSV:  export.NewCSVExporter(),
			dto.ReportFormatPDF:  export.NewPDFExporter(),
			dto.ReportFormatXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
	}
}

// ExportArrears renders the arrears report in the requested format.
func (s *ExportService) ExportArrears(ctx context.Context, query dto.ArrearsReportQuery, format dto.ReportFormat) (*ExportFile, error) {
	format = dto.ReportFormat(strings.ToLower(strings.TrimSpace(string(format))))
	if format == "" {
		format = dto.ReportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, invalidArgument("format must be one of csv, pdf, xlsx")
	}

	report, err := s.reports.ArrearsReport(ctx, query)
	if err != nil {
		return nil, err
	}

	data, err := renderer.Render(arrearsDataset(report))
	if err != nil {
		s.logger.Error("render arrears export", zap.String("format", string(format)), zap.Error(err))
		return nil, err
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("arrears_%s.%s", report.GeneratedAt.Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func arrearsDataset(report *dto.ArrearsReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Items)+1)
	for _, item := range report.Items {
		rows = append(rows, map[string]string{
			"Bill Number":   item.BillNumber,
			"NIS":           item.StudentNIS,
			"Student":       item.StudentName,
			"Phone":         item.StudentPhone,
			"Academic Year": item.AcademicYearLabel,
			"Type":          string(item.Type),
			"Period":        fmt.Sprintf("%04d-%02d", item.Year, item.Month),
			"Due Date":      item.DueDate.Format("2006-01-02"),
			"Days Overdue":  strconv.Itoa(item.DaysOverdue),
			"Total":         money.Format(item.TotalAmount),
			"Paid":          money.Format(item.PaidAmount),
			"Remaining":     money.Format(item.RemainingAmount),
		})
	}
	rows = append(rows, map[string]string{
		"Bill Number": "TOTAL",
		"Student":     fmt.Sprintf("%d students", report.Summary.TotalStudents),
		"Total":       money.Format(report.Summary.TotalArrears),
		"Remaining":   money.Format(report.Summary.TotalRemaining),
	})
	return export.Dataset{
		Title:   "Arrears Report",
		Headers: arrearsHeaders,
		Rows:    rows,
		Numeric: map[string]bool{"Days Overdue": true, "Total": true, "Paid": true, "Remaining": true},
	}
}
