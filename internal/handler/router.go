package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
)

// Handlers groups the API handlers mounted under the API prefix.
type Handlers struct {
	Billings     *BillingHandler
	Reports      *ReportHandler
	ActivityLogs *ActivityLogHandler
	LedgerCheck  *LedgerCheckHandler
}

// RegisterRoutes mounts the ledger API on group. Every route requires a valid
// token; ledger routes additionally require a ledger manager role.
func RegisterRoutes(group *gin.RouterGroup, tokens middleware.TokenValidator, h Handlers) {
	group.Use(middleware.JWT(tokens), middleware.RequireRoles(models.LedgerManagers...))

	billings := group.Group("/billings")
	billings.POST("", h.Billings.Create)
	billings.GET("", h.Billings.List)
	billings.GET("/:id", h.Billings.Get)
	billings.POST("/:id/payments", h.Billings.RecordPayment)
	billings.GET("/:id/discounts", h.Billings.ListDiscounts)
	billings.POST("/:id/discount", h.Billings.ApplyDiscount)
	billings.POST("/:id/waive", h.Billings.Waive)
	billings.POST("/:id/installments", h.Billings.SetInstallmentPlan)

	reports := group.Group("/reports")
	reports.GET("/arrears", h.Reports.Arrears)
	reports.GET("/arrears/export", h.Reports.ExportArrears)
	reports.GET("/installments", h.Reports.Installments)

	group.GET("/activity-logs", h.ActivityLogs.List)
	group.GET("/billing-integrity", h.LedgerCheck.Check)
}

// RegisterOps mounts health, readiness and metrics endpoints outside the API prefix.
func RegisterOps(r gin.IRouter, h *MetricsHandler) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
}
