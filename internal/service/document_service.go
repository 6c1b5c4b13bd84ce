package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutriplan/practice-api/internal/dto"
	"github.com/nutriplan/practice-api/internal/models"
	appErrors "github.com/nutriplan/practice-api/pkg/errors"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
}

type documentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentSignedURLSigner interface {
	Generate(documentID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (documentID, relPath string, expiresAt time.Time, err error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DocumentConfig defines upload limits enforced by the document service.
type DocumentConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService manages patient document metadata and file storage.
type DocumentService struct {
	repo      documentStore
	files     documentFileStorage
	signer    documentSignedURLSigner
	audits    auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	config    DocumentConfig
}

// NewDocumentService constructs a DocumentService instance.
func NewDocumentService(repo documentStore, files documentFileStorage, signer documentSignedURLSigner, audits auditLogger, validate *validator.Validate, logger *zap.Logger, config DocumentConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DocumentService{
		repo:      repo,
		files:     files,
		signer:    signer,
		audits:    audits,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Upload stores the uploaded file on disk and persists its metadata.
func (s *DocumentService) Upload(ctx context.Context, req dto.CreateDocumentRequest, header *multipart.FileHeader, actorID string) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if header == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if s.config.MaxFileSizeBytes > 0 && header.Size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read uploaded file")
	}
	defer file.Close() //nolint:errcheck

	mimeType, err := s.detectMime(file, header)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect uploaded file")
	}
	if !s.mimeAllowed(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not accepted", mimeType))
	}

	relPath := generateFilename(req.PatientID, header.Filename)
	if _, err := s.files.SaveStream(relPath, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document file")
	}

	doc := &models.Document{
		PatientID:  req.PatientID,
		Title:      req.Title,
		Category:   req.Category,
		FilePath:   relPath,
		MimeType:   mimeType,
		SizeBytes:  header.Size,
		UploadedBy: actorID,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if cleanupErr := s.files.Delete(relPath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned document file", zap.String("path", relPath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist document")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDocumentUpload,
		Resource:   "documents",
		ResourceID: &doc.ID,
		NewValues:  []byte(fmt.Sprintf(`{"title":%q,"patient_id":%q}`, doc.Title, doc.PatientID)),
	}); err != nil {
		s.logger.Warn("failed to record document upload audit log", zap.Error(err))
	}

	return doc, nil
}

// List returns document metadata matching the filter.
func (s *DocumentService) List(ctx context.Context, filter dto.DocumentFilter) ([]models.Document, error) {
	docs, err := s.repo.List(ctx, models.DocumentFilter{
		PatientID: filter.PatientID,
		Category:  filter.Category,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Get returns one document. Soft-deleted documents are reported as missing.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return doc, nil
}

// GetDownloadURL issues a short-lived signed download token for staff use.
func (s *DocumentService) GetDownloadURL(ctx context.Context, id string) (*dto.DocumentDownloadResponse, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	token, _, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &dto.DocumentDownloadResponse{
		Document:    *doc,
		DownloadURL: fmt.Sprintf("/api/v1/documents/%s/file?token=%s", doc.ID, token),
	}, nil
}

// Download validates a signed token and opens the underlying file.
func (s *DocumentService) Download(ctx context.Context, id, token string) (*models.Document, *os.File, error) {
	tokenDocID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	if tokenDocID != id {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match document")
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match document")
	}

	file, err := s.files.Open(doc.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	return doc, file, nil
}

// Delete soft-deletes a document. Share links pointing at it stop resolving
// immediately; the stored file is kept for the retention period.
func (s *DocumentService) Delete(ctx context.Context, id string, actorID string, actorRole models.UserRole) error {
	if actorRole != models.RoleSuperAdmin && actorRole != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient role to delete documents")
	}

	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDocumentDelete,
		Resource:   "documents",
		ResourceID: &id,
	}); err != nil {
		s.logger.Warn("failed to record document delete audit log", zap.Error(err))
	}

	return nil
}

func (s *DocumentService) detectMime(file multipart.File, header *multipart.FileHeader) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	detected := http.DetectContentType(buf[:n])
	// DetectContentType cannot distinguish office documents from plain zip
	// archives, so trust the declared type when detection gives up.
	if detected == "application/octet-stream" || detected == "application/zip" {
		if declared := header.Header.Get("Content-Type"); declared != "" {
			return declared, nil
		}
	}
	if idx := strings.Index(detected, ";"); idx > 0 {
		detected = detected[:idx]
	}
	return detected, nil
}

func (s *DocumentService) mimeAllowed(mimeType string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}

func generateFilename(patientID, original string) string {
	ext := filepath.Ext(original)
	return filepath.Join(patientID, uuid.NewString()+strings.ToLower(ext))
}
