package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func TestActivityLogRepositoryList(t *testing.T) {
	db, mock, cleanup := newBillingRepoMock(t)
	defer cleanup()
	repo := NewActivityLogRepository(db)

	rows := sqlmock.NewRows([]string{"id", "actor_id", "actor_role", "action", "entity_type", "entity_id", "details", "created_at"}).
		AddRow("log-1", "treasurer-1", "TREASURER", "WAIVE_BILLING", "BILLING", "bill-1", []byte(`{"waivedReason":"orphan"}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM activity_logs WHERE 1=1 AND entity_type = $1 AND entity_id = $2")).
		WithArgs("BILLING", "bill-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM activity_logs")).
		WithArgs("BILLING", "bill-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	logs, total, err := repo.List(context.Background(), models.ActivityLogFilter{EntityType: "BILLING", EntityID: "bill-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.ActivityWaiveBilling, logs[0].Action)
	assert.JSONEq(t, `{"waivedReason":"orphan"}`, string(logs[0].Details))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertActivityLogDefaults(t *testing.T) {
	db, mock, cleanup := newBillingRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	log := &models.ActivityLog{ActorID: "admin-1", Action: models.ActivityCreateBilling}
	require.NoError(t, insertActivityLog(context.Background(), db, log))
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	assert.Equal(t, "{}", string(log.Details))
}
