package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
)

func serve(h gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/x", h)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestid.HeaderKey, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestErrorEchoesRequestID(t *testing.T) {
	rec := serve(func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrNotFound, "billing not found"))
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "billing not found", body.Error.Message)
	assert.Equal(t, "req-42", body.Meta["requestId"])
}

func TestErrorRecordsServerFailures(t *testing.T) {
	var recorded int
	rec := serve(func(c *gin.Context) {
		Error(c, errors.New("connection reset"))
		recorded = len(c.Errors)
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, recorded)
}

func TestAttachment(t *testing.T) {
	rec := serve(func(c *gin.Context) {
		Attachment(c, "arrears.csv", "text/csv", []byte("a,b\n"))
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="arrears.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", rec.Body.String())
}
