package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsServiceExposesLedgerCounters(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordLedgerOperation("APPLY_DISCOUNT", "success")
	metrics.RecordLedgerOperation("APPLY_DISCOUNT", "invalid_argument")
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/billings", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ledgerOperations.WithLabelValues("APPLY_DISCOUNT", "success")))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sma_billing_ledger_operations_total")
	assert.Contains(t, rec.Body.String(), "sma_billing_http_requests_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.RecordLedgerOperation("x", "y")
	metrics.ObserveDBQuery("q", time.Second)
	metrics.RecordNotification("dropped")
	assert.Nil(t, metrics.Registry())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
