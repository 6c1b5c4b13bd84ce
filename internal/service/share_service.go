package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nutriplan/practice-api/internal/dto"
	"github.com/nutriplan/practice-api/internal/models"
	appErrors "github.com/nutriplan/practice-api/pkg/errors"
	"github.com/nutriplan/practice-api/pkg/export"
)

type shareStore interface {
	Create(ctx context.Context, share *models.DocumentShare) error
	GetByID(ctx context.Context, id string) (*models.DocumentShare, error)
	List(ctx context.Context, filter models.ShareFilter) ([]models.DocumentShare, error)
	Update(ctx context.Context, share *models.DocumentShare) error
	Revoke(ctx context.Context, id string, revokedAt time.Time) error
}

type shareDocumentReader interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

type shareAccessLogReader interface {
	ListByShare(ctx context.Context, shareID string, limit, offset int) ([]models.DocumentAccessLog, int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ShareConfig defines share-link issuing parameters.
type ShareConfig struct {
	PublicBaseURL string
}

// ShareService issues and manages public share links for patient documents.
type ShareService struct {
	repo      shareStore
	documents shareDocumentReader
	logs      shareAccessLogReader
	exporter  csvRenderer
	audits    auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	config    ShareConfig
}

// NewShareService constructs a ShareService instance.
func NewShareService(repo shareStore, documents shareDocumentReader, logs shareAccessLogReader, exporter csvRenderer, audits auditLogger, validate *validator.Validate, logger *zap.Logger, config ShareConfig) *ShareService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ShareService{
		repo:      repo,
		documents: documents,
		logs:      logs,
		exporter:  exporter,
		audits:    audits,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Create issues a new share link for a document. The token is a 32-byte
// random value; guessing it is infeasible, which is why unknown tokens are
// indistinguishable from absent ones on the public side.
func (s *ShareService) Create(ctx context.Context, documentID string, req dto.CreateShareRequest, actorID string) (*dto.ShareResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid share payload")
	}

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}

	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be in the future")
	}

	token, err := generateShareToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate share token")
	}

	share := &models.DocumentShare{
		Token:        token,
		DocumentID:   doc.ID,
		PatientID:    doc.PatientID,
		ExpiresAt:    req.ExpiresAt,
		MaxDownloads: req.MaxDownloads,
		IsActive:     true,
		Notes:        req.Notes,
		CreatedBy:    actorID,
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash share password")
		}
		hashed := string(hash)
		share.PasswordHash = &hashed
	}

	if err := s.repo.Create(ctx, share); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist share")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionShareCreate,
		Resource:   "document_shares",
		ResourceID: &share.ID,
		NewValues:  []byte(fmt.Sprintf(`{"document_id":%q,"has_password":%t}`, doc.ID, share.HasPassword())),
	}); err != nil {
		s.logger.Warn("failed to record share create audit log", zap.Error(err))
	}

	return s.toResponse(share), nil
}

// List returns shares matching the filter.
func (s *ShareService) List(ctx context.Context, filter dto.ShareFilter) ([]dto.ShareResponse, error) {
	shares, err := s.repo.List(ctx, models.ShareFilter{
		DocumentID: filter.DocumentID,
		PatientID:  filter.PatientID,
		ActiveOnly: filter.ActiveOnly,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list shares")
	}
	responses := make([]dto.ShareResponse, 0, len(shares))
	for i := range shares {
		responses = append(responses, *s.toResponse(&shares[i]))
	}
	return responses, nil
}

// Get returns one share by ID.
func (s *ShareService) Get(ctx context.Context, id string) (*dto.ShareResponse, error) {
	share, err := s.loadShare(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(share), nil
}

// Update mutates password protection, expiry, quota or notes on a share.
func (s *ShareService) Update(ctx context.Context, id string, req dto.UpdateShareRequest, actorID string) (*dto.ShareResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid share payload")
	}

	share, err := s.loadShare(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case req.ClearPassword:
		share.PasswordHash = nil
	case req.Password != nil && *req.Password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash share password")
		}
		hashed := string(hash)
		share.PasswordHash = &hashed
	}
	if req.ExpiresAt != nil {
		share.ExpiresAt = req.ExpiresAt
	}
	if req.MaxDownloads != nil {
		share.MaxDownloads = req.MaxDownloads
	}
	if req.Notes != nil {
		share.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, share); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update share")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionShareUpdate,
		Resource:   "document_shares",
		ResourceID: &share.ID,
	}); err != nil {
		s.logger.Warn("failed to record share update audit log", zap.Error(err))
	}

	return s.toResponse(share), nil
}

// Revoke deactivates a share. Revoking an already revoked share is a
// conflict, not a no-op, so callers learn the state they acted on.
func (s *ShareService) Revoke(ctx context.Context, id string, actorID string) error {
	if _, err := s.loadShare(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Revoke(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "share is already revoked")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke share")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionShareRevoke,
		Resource:   "document_shares",
		ResourceID: &id,
	}); err != nil {
		s.logger.Warn("failed to record share revoke audit log", zap.Error(err))
	}

	return nil
}

// AccessLogs returns the public access trail for a share.
func (s *ShareService) AccessLogs(ctx context.Context, id string, limit, offset int) ([]models.DocumentAccessLog, *models.Pagination, error) {
	if _, err := s.loadShare(ctx, id); err != nil {
		return nil, nil, err
	}

	logs, total, err := s.logs.ListByShare(ctx, id, limit, offset)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access logs")
	}

	if limit <= 0 {
		limit = 100
	}
	pagination := &models.Pagination{
		Page:       offset/limit + 1,
		PageSize:   limit,
		TotalCount: total,
	}
	return logs, pagination, nil
}

// ExportAccessLogs renders the access trail of a share as CSV.
func (s *ShareService) ExportAccessLogs(ctx context.Context, id string) ([]byte, string, error) {
	share, err := s.loadShare(ctx, id)
	if err != nil {
		return nil, "", err
	}

	logs, _, err := s.logs.ListByShare(ctx, id, 500, 0)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access logs")
	}

	dataset := export.Dataset{
		Headers: []string{"timestamp", "action", "ip_address", "user_agent"},
		Rows:    make([]map[string]string, 0, len(logs)),
	}
	for _, log := range logs {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"timestamp":  log.CreatedAt.UTC().Format(time.RFC3339),
			"action":     string(log.Action),
			"ip_address": log.IPAddress,
			"user_agent": log.UserAgent,
		})
	}

	data, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render access log export")
	}

	filename := fmt.Sprintf("share_%s_access_logs.csv", share.ID)
	return data, filename, nil
}

func (s *ShareService) loadShare(ctx context.Context, id string) (*models.DocumentShare, error) {
	share, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "share not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load share")
	}
	return share, nil
}

func (s *ShareService) toResponse(share *models.DocumentShare) *dto.ShareResponse {
	return &dto.ShareResponse{
		DocumentShare: *share,
		ShareURL:      strings.TrimRight(s.config.PublicBaseURL, "/") + "/public/documents/" + share.Token,
		HasPassword:   share.HasPassword(),
	}
}

func generateShareToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
