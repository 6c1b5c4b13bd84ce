package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nutriplan/practice-api/internal/models"
)

const shareColumns = `id, token, document_id, patient_id, password_hash, expires_at, max_downloads, download_count, is_active, notes, created_by, created_at, updated_at`

// ShareRepository handles document share persistence. Shares are never
// deleted; revocation flips is_active.
type ShareRepository struct {
	db *sqlx.DB
}

// NewShareRepository constructs the repository.
func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Create stores a new share row.
func (r *ShareRepository) Create(ctx context.Context, share *models.DocumentShare) error {
	if share.ID == "" {
		share.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if share.CreatedAt.IsZero() {
		share.CreatedAt = now
	}
	share.UpdatedAt = now
	const query = `INSERT INTO document_shares
	(id, token, document_id, patient_id, password_hash, expires_at, max_downloads, download_count, is_active, notes, created_by, created_at, updated_at)
	VALUES (:id, :token, :document_id, :patient_id, :password_hash, :expires_at, :max_downloads, :download_count, :is_active, :notes, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, share); err != nil {
		return fmt.Errorf("create document share: %w", err)
	}
	return nil
}

// GetByID retrieves one share row by identifier.
func (r *ShareRepository) GetByID(ctx context.Context, id string) (*models.DocumentShare, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_shares WHERE id = $1`, shareColumns)
	var share models.DocumentShare
	if err := r.db.GetContext(ctx, &share, query, id); err != nil {
		return nil, err
	}
	return &share, nil
}

// GetByToken retrieves one share row by its opaque token.
func (r *ShareRepository) GetByToken(ctx context.Context, token string) (*models.DocumentShare, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_shares WHERE token = $1`, shareColumns)
	var share models.DocumentShare
	if err := r.db.GetContext(ctx, &share, query, token); err != nil {
		return nil, err
	}
	return &share, nil
}

// List returns shares applying filters, newest first.
func (r *ShareRepository) List(ctx context.Context, filter models.ShareFilter) ([]models.DocumentShare, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM document_shares`, shareColumns))
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 3)

	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		conditions = append(conditions, fmt.Sprintf("document_id = $%d", len(args)))
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.DocumentShare
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list document shares: %w", err)
	}
	return records, nil
}

// Update persists mutable share fields (password, expiry, quota, notes).
func (r *ShareRepository) Update(ctx context.Context, share *models.DocumentShare) error {
	share.UpdatedAt = time.Now().UTC()
	const query = `UPDATE document_shares SET password_hash = :password_hash, expires_at = :expires_at, max_downloads = :max_downloads, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, share); err != nil {
		return fmt.Errorf("update document share: %w", err)
	}
	return nil
}

// Revoke deactivates a share. The row is kept for the audit trail and the
// transition is one-way: revoked shares are never reactivated.
func (r *ShareRepository) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE document_shares SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, revokedAt)
	if err != nil {
		return fmt.Errorf("revoke document share: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check share revoke rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementDownloadCount atomically increments the counter while re-checking
// the quota inside the same statement, so concurrent downloads cannot race a
// near-exhausted quota past max_downloads. Returns sql.ErrNoRows when the
// share is no longer eligible (revoked, or quota already consumed).
func (r *ShareRepository) IncrementDownloadCount(ctx context.Context, id string) (int, error) {
	const query = `UPDATE document_shares
	SET download_count = download_count + 1, updated_at = $2
	WHERE id = $1 AND is_active = TRUE AND (max_downloads IS NULL OR download_count < max_downloads)
	RETURNING download_count`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("increment download count: %w", err)
	}
	return count, nil
}
