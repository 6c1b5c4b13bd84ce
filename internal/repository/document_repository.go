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

// DocumentRepository handles patient document metadata persistence.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores metadata for an uploaded document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents
	(id, patient_id, title, category, file_path, mime_type, size_bytes, uploaded_by, uploaded_at, deleted_at)
	VALUES (:id, :patient_id, :title, :category, :file_path, :mime_type, :size_bytes, :uploaded_by, :uploaded_at, :deleted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document row.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, patient_id, title, category, file_path, mime_type, size_bytes, uploaded_by, uploaded_at, deleted_at
	FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents applying filters and excluding deleted rows by default.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, patient_id, title, category, file_path, mime_type, size_bytes, uploaded_by, uploaded_at, deleted_at FROM documents`)
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY uploaded_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.Document
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return records, nil
}

// SoftDelete marks a document as deleted.
func (r *DocumentRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	const query = `UPDATE documents SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
