package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type arrearsSourceStub struct {
	report *dto.ArrearsReport
	err    error
}

func (s arrearsSourceStub) ArrearsReport(ctx context.Context, query dto.ArrearsReportQuery) (*dto.ArrearsReport, error) {
	return s.report, s.err
}

func sampleArrears() *dto.ArrearsReport {
	return &dto.ArrearsReport{
		Summary: dto.ArrearsSummary{TotalStudents: 1, TotalOverdueBillings: 1, TotalArrears: amount(300000), TotalRemaining: amount(250000)},
		Items: []dto.ArrearsItem{{
			BillingID:       "b1",
			BillNumber:      "INV/202403/abc",
			StudentName:     "Budi",
			StudentNIS:      "1001",
			Type:            models.BillingTypeTuition,
			Month:           3,
			Year:            2024,
			TotalAmount:     amount(300000),
			PaidAmount:      amount(50000),
			RemainingAmount: amount(250000),
			DueDate:         time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			DaysOverdue:     5,
			Status:          models.BillingStatusOverdue,
		}},
		GeneratedAt: testNow,
	}
}

func TestExportArrearsCSV(t *testing.T) {
	svc := NewExportService(arrearsSourceStub{report: sampleArrears()}, nil)

	file, err := svc.ExportArrears(context.Background(), dto.ArrearsReportQuery{}, "")
	require.NoError(t, err)
	assert.Equal(t, "arrears_20240315_090000.csv", file.Filename)
	assert.Contains(t, file.ContentType, "text/csv")

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, arrearsHeaders, records[0])
	assert.Equal(t, "INV/202403/abc", records[1][0])
	assert.Equal(t, "2024-03", records[1][6])
	assert.Equal(t, "5", records[1][8])
	assert.Equal(t, "TOTAL", records[2][0])
}

func TestExportArrearsBinaryFormats(t *testing.T) {
	svc := NewExportService(arrearsSourceStub{report: sampleArrears()}, nil)

	pdf, err := svc.ExportArrears(context.Background(), dto.ArrearsReportQuery{}, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, bytes.HasPrefix(pdf.Data, []byte("%PDF")))

	xlsx, err := svc.ExportArrears(context.Background(), dto.ArrearsReportQuery{}, dto.ReportFormatXLSX)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsx.Data, []byte("PK")))
	assert.Contains(t, xlsx.Filename, ".xlsx")
}

func TestExportArrearsErrors(t *testing.T) {
	svc := NewExportService(arrearsSourceStub{report: sampleArrears()}, nil)
	_, err := svc.ExportArrears(context.Background(), dto.ArrearsReportQuery{}, "docx")
	assert.True(t, appErrors.IsKind(err, appErrors.ErrInvalidArgument))

	failing := NewExportService(arrearsSourceStub{err: appErrors.Persistence(errors.New("down"), "")}, nil)
	_, err = failing.ExportArrears(context.Background(), dto.ArrearsReportQuery{}, "csv")
	assert.True(t, appErrors.IsKind(err, appErrors.ErrPersistence))
}
