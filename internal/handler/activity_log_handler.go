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

type activityLogService interface {
	List(ctx context.Context, query dto.ActivityLogQuery) ([]models.ActivityLog, *models.Pagination, error)
}

// ActivityLogHandler exposes the ledger audit trail.
type ActivityLogHandler struct {
	service activityLogService
}

// NewActivityLogHandler constructs the handler.
func NewActivityLogHandler(service activityLogService) *ActivityLogHandler {
	return &ActivityLogHandler{service: service}
}

// List godoc
// @Summary List activity log entries
// @Tags Activity Logs
// @Produce json
// @Param entityType query string false "BILLING or STUDENT"
// @Param entityId query string false "Entity ID"
// @Param actorId query string false "Actor ID"
// @Param action query string false "Audited action"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activity-logs [get]
func (h *ActivityLogHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		response.Error(c, err)
		return
	}
	size, err := queryInt(c, "pageSize")
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, pagination, err := h.service.List(c.Request.Context(), dto.ActivityLogQuery{
		EntityType: strings.ToUpper(c.Query("entityType")),
		EntityID:   c.Query("entityId"),
		ActorID:    c.Query("actorId"),
		Action:     models.ActivityAction(strings.ToUpper(c.Query("action"))),
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
