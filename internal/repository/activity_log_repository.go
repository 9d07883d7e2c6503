package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// ActivityLogRepository reads the append-only activity log.
type ActivityLogRepository struct {
	db *sqlx.DB
}

// NewActivityLogRepository constructs the repository.
func NewActivityLogRepository(db *sqlx.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// List returns entries matching the filter, latest first.
func (r *ActivityLogRepository) List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, int, error) {
	args := make([]interface{}, 0, 4)
	conditions := []string{"1=1"}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}

	query := fmt.Sprintf(`SELECT id, actor_id, actor_role, action, entity_type, entity_id, details, created_at
	FROM activity_logs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, where, size, (page-1)*size)
	var logs []models.ActivityLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM activity_logs WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}
	return logs, total, nil
}

func insertActivityLog(ctx context.Context, exec namedExecer, log *models.ActivityLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if len(log.Details) == 0 {
		log.Details = []byte("{}")
	}
	const query = `INSERT INTO activity_logs (id, actor_id, actor_role, action, entity_type, entity_id, details, created_at)
	VALUES (:id, :actor_id, :actor_role, :action, :entity_type, :entity_id, :details, :created_at)`
	if _, err := exec.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}
