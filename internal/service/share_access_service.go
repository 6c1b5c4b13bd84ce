package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nutriplan/practice-api/internal/dto"
	"github.com/nutriplan/practice-api/internal/models"
	"github.com/nutriplan/practice-api/internal/ratelimit"
	appErrors "github.com/nutriplan/practice-api/pkg/errors"
)

type publicShareReader interface {
	GetByToken(ctx context.Context, token string) (*models.DocumentShare, error)
	IncrementDownloadCount(ctx context.Context, id string) (int, error)
}

type publicDocumentReader interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

type accessLogWriter interface {
	Create(ctx context.Context, log *models.DocumentAccessLog) error
}

type shareMetrics interface {
	RecordShareDownload()
	RecordSharePreview()
	RecordSharePasswordFailure()
	RecordShareRateLimited()
}

// RateLimitError carries the duration a throttled client should wait before
// retrying. Handlers surface it as a Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// RetryAfterFromError extracts the retry delay from a wrapped RateLimitError.
func RetryAfterFromError(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}

// RequestMeta identifies the anonymous client for audit and throttling.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ShareDownload bundles an opened file with the metadata needed to stream it.
type ShareDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// ShareAccessConfig defines public access parameters.
type ShareAccessConfig struct {
	PreviewMIMEs []string
}

// ShareAccessService implements the anonymous side of share links: token
// resolution, accessibility evaluation, the password gate and file delivery.
type ShareAccessService struct {
	shares    publicShareReader
	documents publicDocumentReader
	logs      accessLogWriter
	files     documentFileStorage
	limiter   ratelimit.AttemptLimiter
	metrics   shareMetrics
	logger    *zap.Logger
	config    ShareAccessConfig
	now       func() time.Time
}

// NewShareAccessService constructs a ShareAccessService instance.
func NewShareAccessService(shares publicShareReader, documents publicDocumentReader, logs accessLogWriter, files documentFileStorage, limiter ratelimit.AttemptLimiter, metrics shareMetrics, logger *zap.Logger, config ShareAccessConfig) *ShareAccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareAccessService{
		shares:    shares,
		documents: documents,
		logs:      logs,
		files:     files,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Info resolves a token into the public share description. Unknown tokens
// map to a 404; a resolvable but inaccessible share still returns its info
// with the accessibility flags set, so link pages can explain the state.
func (s *ShareAccessService) Info(ctx context.Context, token string, meta RequestMeta) (*dto.PublicShareInfo, error) {
	share, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	doc, err := s.documents.GetByID(ctx, share.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrShareNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shared document")
	}
	if doc.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrShareNotFound, "")
	}

	access := share.Evaluate(s.now().UTC())
	s.appendLog(ctx, share.ID, models.AccessActionView, meta)

	return &dto.PublicShareInfo{
		Token:            share.Token,
		DocumentTitle:    doc.Title,
		MimeType:         doc.MimeType,
		SizeBytes:        doc.SizeBytes,
		RequiresPassword: share.HasPassword(),
		ExpiresAt:        share.ExpiresAt,
		MaxDownloads:     share.MaxDownloads,
		DownloadCount:    share.DownloadCount,
		IsActive:         access.IsActive,
		IsExpired:        access.IsExpired,
		HasReachedLimit:  access.HasReachedLimit,
		IsAccessible:     access.IsAccessible,
	}, nil
}

// VerifyPassword checks a password attempt against the share. Throttling
// runs before any share lookup, so hammering unknown tokens burns the same
// quota as hammering real ones. A missing share and a wrong password produce
// the same generic 401.
func (s *ShareAccessService) VerifyPassword(ctx context.Context, token, password string, meta RequestMeta) error {
	if err := s.throttle(ctx, meta); err != nil {
		return err
	}

	share, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordPasswordFailure()
			return appErrors.Clone(appErrors.ErrInvalidPassword, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load share")
	}

	s.appendLog(ctx, share.ID, models.AccessActionVerify, meta)

	// A share without a password accepts any verification attempt.
	if !share.HasPassword() {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*share.PasswordHash), []byte(password)); err != nil {
		s.recordPasswordFailure()
		return appErrors.Clone(appErrors.ErrInvalidPassword, "")
	}

	return nil
}

// Download delivers the shared file. The quota is consumed by a conditional
// increment so two concurrent downloads cannot both take the last slot.
func (s *ShareAccessService) Download(ctx context.Context, token, password string, meta RequestMeta) (*ShareDownload, error) {
	share, doc, err := s.authorize(ctx, token, password, meta)
	if err != nil {
		return nil, err
	}

	if _, err := s.shares.IncrementDownloadCount(ctx, share.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrShareLimitReached, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume download quota")
	}

	file, err := s.files.Open(doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open shared file")
	}

	s.appendLog(ctx, share.ID, models.AccessActionDownload, meta)
	if s.metrics != nil {
		s.metrics.RecordShareDownload()
	}

	return &ShareDownload{
		File:      file,
		Filename:  doc.Title,
		MimeType:  doc.MimeType,
		SizeBytes: doc.SizeBytes,
	}, nil
}

// Preview delivers the shared file inline without consuming the download
// quota. Only MIME types browsers render safely are eligible.
func (s *ShareAccessService) Preview(ctx context.Context, token, password string, meta RequestMeta) (*ShareDownload, error) {
	share, doc, err := s.authorize(ctx, token, password, meta)
	if err != nil {
		return nil, err
	}

	if !s.previewAllowed(doc.MimeType) {
		return nil, appErrors.Clone(appErrors.ErrPreviewNotAllowed, "")
	}

	file, err := s.files.Open(doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open shared file")
	}

	s.appendLog(ctx, share.ID, models.AccessActionView, meta)
	if s.metrics != nil {
		s.metrics.RecordSharePreview()
	}

	return &ShareDownload{
		File:      file,
		Filename:  doc.Title,
		MimeType:  doc.MimeType,
		SizeBytes: doc.SizeBytes,
	}, nil
}

// authorize runs the shared gate sequence: resolve the token, evaluate
// accessibility, then check the password when the share carries one.
func (s *ShareAccessService) authorize(ctx context.Context, token, password string, meta RequestMeta) (*models.DocumentShare, *models.Document, error) {
	share, err := s.resolve(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	access := share.Evaluate(s.now().UTC())
	if !access.IsAccessible {
		return nil, nil, accessError(access)
	}

	if share.HasPassword() {
		if password == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrPasswordRequired, "")
		}
		if err := s.throttle(ctx, meta); err != nil {
			return nil, nil, err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*share.PasswordHash), []byte(password)); err != nil {
			s.recordPasswordFailure()
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidPassword, "")
		}
	}

	doc, err := s.documents.GetByID(ctx, share.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrShareNotFound, "")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shared document")
	}
	if doc.DeletedAt != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrShareNotFound, "")
	}

	return share, doc, nil
}

func (s *ShareAccessService) resolve(ctx context.Context, token string) (*models.DocumentShare, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrShareNotFound, "")
	}
	share, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrShareNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load share")
	}
	return share, nil
}

// throttle enforces the per-IP attempt ceiling. A limiter failure rejects the
// attempt rather than waving it through.
func (s *ShareAccessService) throttle(ctx context.Context, meta RequestMeta) error {
	allowed, retryAfter, err := s.limiter.Attempt(ctx, meta.IP)
	if err != nil {
		s.logger.Error("password attempt limiter unavailable", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordShareRateLimited()
		}
		return appErrors.Wrap(err, appErrors.ErrTooManyAttempts.Code, appErrors.ErrTooManyAttempts.Status, appErrors.ErrTooManyAttempts.Message)
	}
	if !allowed {
		if s.metrics != nil {
			s.metrics.RecordShareRateLimited()
		}
		return appErrors.Wrap(&RateLimitError{RetryAfter: retryAfter}, appErrors.ErrTooManyAttempts.Code, appErrors.ErrTooManyAttempts.Status, appErrors.ErrTooManyAttempts.Message)
	}
	return nil
}

func (s *ShareAccessService) previewAllowed(mimeType string) bool {
	for _, allowed := range s.config.PreviewMIMEs {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}

// appendLog records the access attempt. Logging failures never block the
// public request itself.
func (s *ShareAccessService) appendLog(ctx context.Context, shareID string, action models.AccessAction, meta RequestMeta) {
	if err := s.logs.Create(ctx, &models.DocumentAccessLog{
		DocumentShareID: shareID,
		Action:          action,
		IPAddress:       meta.IP,
		UserAgent:       meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to append access log", zap.String("share_id", shareID), zap.String("action", string(action)), zap.Error(err))
	}
}

func (s *ShareAccessService) recordPasswordFailure() {
	if s.metrics != nil {
		s.metrics.RecordSharePasswordFailure()
	}
}

func accessError(access models.ShareAccess) error {
	switch {
	case !access.IsActive:
		return appErrors.Clone(appErrors.ErrShareRevoked, "")
	case access.IsExpired:
		return appErrors.Clone(appErrors.ErrShareExpired, "")
	case access.HasReachedLimit:
		return appErrors.Clone(appErrors.ErrShareLimitReached, "")
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
}
