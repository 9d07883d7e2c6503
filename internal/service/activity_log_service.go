package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type activityLogReader interface {
	List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, int, error)
}

// ActivityLogService exposes the audit trail written alongside ledger mutations.
type ActivityLogService struct {
	repo   activityLogReader
	logger *zap.Logger
}

// NewActivityLogService constructs the service.
func NewActivityLogService(repo activityLogReader, logger *zap.Logger) *ActivityLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityLogService{repo: repo, logger: logger}
}

// List returns audit entries newest first.
func (s *ActivityLogService) List(ctx context.Context, query dto.ActivityLogQuery) ([]models.ActivityLog, *models.Pagination, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	logs, total, err := s.repo.List(ctx, models.ActivityLogFilter{
		EntityType: query.EntityType,
		EntityID:   query.EntityID,
		ActorID:    query.ActorID,
		Action:     query.Action,
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		s.logger.Error("list activity logs", zap.Error(err))
		return nil, nil, appErrors.Persistence(err, "failed to list activity logs")
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
