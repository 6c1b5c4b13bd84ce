package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/practice-api/internal/models"
)

func TestAccessLogCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccessLogRepository(db)

	mock.ExpectExec("INSERT INTO document_access_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	log := &models.DocumentAccessLog{DocumentShareID: "s1", Action: models.AccessActionDownload, IPAddress: "10.0.0.1", UserAgent: "curl"}
	err := repo.Create(context.Background(), log)
	require.NoError(t, err)
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessLogListByShare(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccessLogRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "document_share_id", "action", "ip_address", "user_agent", "created_at"}).
		AddRow("l1", "s1", "view", "10.0.0.1", "curl", now).
		AddRow("l2", "s1", "download", "10.0.0.1", "curl", now)
	mock.ExpectQuery("SELECT id, document_share_id, action, ip_address, user_agent, created_at").
		WithArgs("s1").
		WillReturnRows(rows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(2)
	mock.ExpectQuery("SELECT COUNT").WithArgs("s1").WillReturnRows(countRows)

	logs, total, err := repo.ListByShare(context.Background(), "s1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, models.AccessActionView, logs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
