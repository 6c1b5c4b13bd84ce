package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nutriplan/practice-api/internal/models"
)

// AccessLogRepository appends and reads public access audit rows.
type AccessLogRepository struct {
	db *sqlx.DB
}

// NewAccessLogRepository constructs the repository.
func NewAccessLogRepository(db *sqlx.DB) *AccessLogRepository {
	return &AccessLogRepository{db: db}
}

// Create appends an access log row. Rows are never updated or deleted.
func (r *AccessLogRepository) Create(ctx context.Context, log *models.DocumentAccessLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_access_logs (id, document_share_id, action, ip_address, user_agent, created_at)
	VALUES (:id, :document_share_id, :action, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create access log: %w", err)
	}
	return nil
}

// ListByShare returns access rows for a share, newest first, with total count.
func (r *AccessLogRepository) ListByShare(ctx context.Context, shareID string, limit, offset int) ([]models.DocumentAccessLog, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT id, document_share_id, action, ip_address, user_agent, created_at
	FROM document_access_logs WHERE document_share_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)
	var logs []models.DocumentAccessLog
	if err := r.db.SelectContext(ctx, &logs, query, shareID); err != nil {
		return nil, 0, fmt.Errorf("list access logs: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM document_access_logs WHERE document_share_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, shareID); err != nil {
		return nil, 0, fmt.Errorf("count access logs: %w", err)
	}

	return logs, total, nil
}
