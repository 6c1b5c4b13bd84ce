package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nutriplan/practice-api/internal/models"
	"github.com/nutriplan/practice-api/internal/ratelimit"
	appErrors "github.com/nutriplan/practice-api/pkg/errors"
)

type mockPublicShareReader struct {
	shares         map[string]*models.DocumentShare
	getErr         error
	incrementErr   error
	incrementCalls int
}

func (m *mockPublicShareReader) GetByToken(ctx context.Context, token string) (*models.DocumentShare, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	share, ok := m.shares[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return share, nil
}

func (m *mockPublicShareReader) IncrementDownloadCount(ctx context.Context, id string) (int, error) {
	m.incrementCalls++
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	for _, share := range m.shares {
		if share.ID != id {
			continue
		}
		if !share.IsActive {
			return 0, sql.ErrNoRows
		}
		if share.MaxDownloads != nil && share.DownloadCount >= *share.MaxDownloads {
			return 0, sql.ErrNoRows
		}
		share.DownloadCount++
		return share.DownloadCount, nil
	}
	return 0, sql.ErrNoRows
}

type mockPublicDocumentReader struct {
	docs map[string]*models.Document
	err  error
}

func (m *mockPublicDocumentReader) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return doc, nil
}

type mockAccessLogWriter struct {
	logs []*models.DocumentAccessLog
	err  error
}

func (m *mockAccessLogWriter) Create(ctx context.Context, log *models.DocumentAccessLog) error {
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAccessLogWriter) actions() []models.AccessAction {
	actions := make([]models.AccessAction, 0, len(m.logs))
	for _, log := range m.logs {
		actions = append(actions, log.Action)
	}
	return actions
}

type mockFileStorage struct {
	paths map[string]string
}

func (m *mockFileStorage) SaveStream(filename string, r io.Reader) (string, error) {
	return filename, nil
}

func (m *mockFileStorage) Open(filename string) (*os.File, error) {
	path, ok := m.paths[filename]
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.Open(path)
}

func (m *mockFileStorage) Delete(filename string) error {
	delete(m.paths, filename)
	return nil
}

type failingLimiter struct{ err error }

func (l *failingLimiter) Attempt(ctx context.Context, key string) (bool, time.Duration, error) {
	return false, 0, l.err
}

type accessFixture struct {
	shares  *mockPublicShareReader
	docs    *mockPublicDocumentReader
	logs    *mockAccessLogWriter
	files   *mockFileStorage
	limiter ratelimit.AttemptLimiter
	svc     *ShareAccessService
}

func newAccessFixture(t *testing.T, share *models.DocumentShare) *accessFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "plan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fixture"), 0o600))

	doc := &models.Document{
		ID:        "d1",
		PatientID: "p1",
		Title:     "Meal plan",
		FilePath:  "p1/plan.pdf",
		MimeType:  "application/pdf",
		SizeBytes: 16,
	}

	f := &accessFixture{
		shares:  &mockPublicShareReader{shares: map[string]*models.DocumentShare{share.Token: share}},
		docs:    &mockPublicDocumentReader{docs: map[string]*models.Document{doc.ID: doc}},
		logs:    &mockAccessLogWriter{},
		files:   &mockFileStorage{paths: map[string]string{doc.FilePath: path}},
		limiter: ratelimit.NewMemoryLimiter(10, 15*time.Minute),
	}
	f.svc = NewShareAccessService(f.shares, f.docs, f.logs, f.files, f.limiter, nil, zap.NewNop(), ShareAccessConfig{
		PreviewMIMEs: []string{"application/pdf", "image/png"},
	})
	return f
}

func activeShare() *models.DocumentShare {
	return &models.DocumentShare{
		ID:         "s1",
		Token:      "tok123",
		DocumentID: "d1",
		PatientID:  "p1",
		IsActive:   true,
	}
}

func protectedShare(t *testing.T, password string) *models.DocumentShare {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	share := activeShare()
	hashed := string(hash)
	share.PasswordHash = &hashed
	return share
}

func meta() RequestMeta {
	return RequestMeta{IP: "203.0.113.9", UserAgent: "test-agent"}
}

func TestShareAccessInfoUnknownTokenNotFound(t *testing.T) {
	f := newAccessFixture(t, activeShare())

	_, err := f.svc.Info(context.Background(), "unknown", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrShareNotFound.Code, appErr.Code)
	assert.Equal(t, 404, appErr.Status)
	assert.Empty(t, f.logs.logs)
}

func TestShareAccessInfoReturnsFlagsAndLogsView(t *testing.T) {
	share := activeShare()
	max := 3
	share.MaxDownloads = &max
	share.DownloadCount = 1
	f := newAccessFixture(t, share)

	info, err := f.svc.Info(context.Background(), share.Token, meta())
	require.NoError(t, err)
	assert.Equal(t, "Meal plan", info.DocumentTitle)
	assert.False(t, info.RequiresPassword)
	assert.True(t, info.IsActive)
	assert.False(t, info.IsExpired)
	assert.False(t, info.HasReachedLimit)
	assert.True(t, info.IsAccessible)
	assert.Equal(t, 1, info.DownloadCount)
	assert.Equal(t, []models.AccessAction{models.AccessActionView}, f.logs.actions())
}

func TestShareAccessInfoRevokedStillResolvesWithFlags(t *testing.T) {
	share := activeShare()
	share.IsActive = false
	f := newAccessFixture(t, share)

	info, err := f.svc.Info(context.Background(), share.Token, meta())
	require.NoError(t, err)
	assert.False(t, info.IsActive)
	assert.False(t, info.IsAccessible)
}

func TestShareAccessInfoRequiresPasswordFlag(t *testing.T) {
	f := newAccessFixture(t, protectedShare(t, "hunter2"))

	info, err := f.svc.Info(context.Background(), "tok123", meta())
	require.NoError(t, err)
	assert.True(t, info.RequiresPassword)
}

func TestShareAccessDownloadRevoked(t *testing.T) {
	share := activeShare()
	share.IsActive = false
	f := newAccessFixture(t, share)

	_, err := f.svc.Download(context.Background(), share.Token, "", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrShareRevoked.Code, appErr.Code)
	assert.Equal(t, 403, appErr.Status)
	assert.Zero(t, f.shares.incrementCalls)
}

func TestShareAccessDownloadExpired(t *testing.T) {
	share := activeShare()
	past := time.Now().UTC().Add(-time.Hour)
	share.ExpiresAt = &past
	f := newAccessFixture(t, share)

	_, err := f.svc.Download(context.Background(), share.Token, "", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrShareExpired.Code, appErr.Code)
	assert.Equal(t, 403, appErr.Status)
}

func TestShareAccessDownloadLimitReached(t *testing.T) {
	share := activeShare()
	max := 2
	share.MaxDownloads = &max
	share.DownloadCount = 2
	f := newAccessFixture(t, share)

	_, err := f.svc.Download(context.Background(), share.Token, "", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrShareLimitReached.Code, appErr.Code)
	assert.Zero(t, f.shares.incrementCalls)
}

func TestShareAccessDownloadIncrementsExactlyOnce(t *testing.T) {
	f := newAccessFixture(t, activeShare())

	res, err := f.svc.Download(context.Background(), "tok123", "", meta())
	require.NoError(t, err)
	defer res.File.Close() //nolint:errcheck

	assert.Equal(t, 1, f.shares.incrementCalls)
	assert.Equal(t, "application/pdf", res.MimeType)
	assert.Equal(t, []models.AccessAction{models.AccessActionDownload}, f.logs.actions())

	data, err := io.ReadAll(res.File)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fixture", string(data))
}

func TestShareAccessSingleDownloadQuota(t *testing.T) {
	share := activeShare()
	max := 1
	share.MaxDownloads = &max
	f := newAccessFixture(t, share)

	res, err := f.svc.Download(context.Background(), share.Token, "", meta())
	require.NoError(t, err)
	res.File.Close() //nolint:errcheck

	_, err = f.svc.Download(context.Background(), share.Token, "", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrShareLimitReached.Code, appErr.Code)
}

func TestShareAccessDownloadQuotaRace(t *testing.T) {
	// The conditional increment reports the quota as consumed even when the
	// in-memory evaluation raced past it.
	share := activeShare()
	f := newAccessFixture(t, share)
	f.shares.incrementErr = sql.ErrNoRows

	_, err := f.svc.Download(context.Background(), share.Token, "", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrShareLimitReached.Code, appErr.Code)
}

func TestShareAccessDownloadPasswordRequired(t *testing.T) {
	f := newAccessFixture(t, protectedShare(t, "hunter2"))

	_, err := f.svc.Download(context.Background(), "tok123", "", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPasswordRequired.Code, appErr.Code)
	assert.Equal(t, 401, appErr.Status)
	assert.Zero(t, f.shares.incrementCalls)
}

func TestShareAccessDownloadWrongPassword(t *testing.T) {
	f := newAccessFixture(t, protectedShare(t, "hunter2"))

	_, err := f.svc.Download(context.Background(), "tok123", "wrong", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidPassword.Code, appErr.Code)
	assert.Zero(t, f.shares.incrementCalls)
}

func TestShareAccessDownloadCorrectPassword(t *testing.T) {
	f := newAccessFixture(t, protectedShare(t, "hunter2"))

	res, err := f.svc.Download(context.Background(), "tok123", "hunter2", meta())
	require.NoError(t, err)
	res.File.Close() //nolint:errcheck
	assert.Equal(t, 1, f.shares.incrementCalls)
}

func TestShareAccessPreviewDoesNotIncrement(t *testing.T) {
	f := newAccessFixture(t, activeShare())

	res, err := f.svc.Preview(context.Background(), "tok123", "", meta())
	require.NoError(t, err)
	res.File.Close() //nolint:errcheck

	assert.Zero(t, f.shares.incrementCalls)
	assert.Equal(t, []models.AccessAction{models.AccessActionView}, f.logs.actions())
}

func TestShareAccessPreviewRejectsUnsupportedMime(t *testing.T) {
	f := newAccessFixture(t, activeShare())
	f.docs.docs["d1"].MimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	_, err := f.svc.Preview(context.Background(), "tok123", "", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreviewNotAllowed.Code, appErr.Code)
	assert.Equal(t, 415, appErr.Status)
	assert.Empty(t, f.logs.logs)
}

func TestShareAccessVerifyPasswordSuccess(t *testing.T) {
	f := newAccessFixture(t, protectedShare(t, "hunter2"))

	err := f.svc.VerifyPassword(context.Background(), "tok123", "hunter2", meta())
	require.NoError(t, err)
	assert.Equal(t, []models.AccessAction{models.AccessActionVerify}, f.logs.actions())
}

func TestShareAccessVerifyPasswordWrong(t *testing.T) {
	f := newAccessFixture(t, protectedShare(t, "hunter2"))

	err := f.svc.VerifyPassword(context.Background(), "tok123", "wrong", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidPassword.Code, appErr.Code)
	assert.Equal(t, 401, appErr.Status)
}

func TestShareAccessVerifyPasswordUnknownTokenSameError(t *testing.T) {
	// An unknown token and a wrong password are indistinguishable, so the
	// verify endpoint cannot be used as a token oracle.
	f := newAccessFixture(t, protectedShare(t, "hunter2"))

	err := f.svc.VerifyPassword(context.Background(), "unknown", "hunter2", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidPassword.Code, appErr.Code)
	assert.Equal(t, 401, appErr.Status)
}

func TestShareAccessVerifyUnprotectedShareSucceeds(t *testing.T) {
	f := newAccessFixture(t, activeShare())

	err := f.svc.VerifyPassword(context.Background(), "tok123", "anything", meta())
	require.NoError(t, err)
}

func TestShareAccessVerifyEleventhAttemptThrottled(t *testing.T) {
	f := newAccessFixture(t, protectedShare(t, "hunter2"))

	for i := 0; i < 10; i++ {
		err := f.svc.VerifyPassword(context.Background(), "tok123", fmt.Sprintf("wrong-%d", i), meta())
		appErr := appErrors.FromError(err)
		require.Equal(t, appErrors.ErrInvalidPassword.Code, appErr.Code, "attempt %d", i+1)
	}

	err := f.svc.VerifyPassword(context.Background(), "tok123", "hunter2", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTooManyAttempts.Code, appErr.Code)
	assert.Equal(t, 429, appErr.Status)

	retryAfter, ok := RetryAfterFromError(err)
	assert.True(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestShareAccessThrottleIsPerIP(t *testing.T) {
	f := newAccessFixture(t, protectedShare(t, "hunter2"))

	for i := 0; i < 10; i++ {
		_ = f.svc.VerifyPassword(context.Background(), "tok123", "wrong", RequestMeta{IP: "198.51.100.1"})
	}

	err := f.svc.VerifyPassword(context.Background(), "tok123", "hunter2", RequestMeta{IP: "198.51.100.2"})
	require.NoError(t, err)
}

func TestShareAccessLimiterFailureFailsClosed(t *testing.T) {
	f := newAccessFixture(t, protectedShare(t, "hunter2"))
	f.svc.limiter = &failingLimiter{err: errors.New("redis down")}

	err := f.svc.VerifyPassword(context.Background(), "tok123", "hunter2", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTooManyAttempts.Code, appErr.Code)
	assert.Equal(t, 429, appErr.Status)
}

func TestShareAccessLogFailureDoesNotBlockDownload(t *testing.T) {
	f := newAccessFixture(t, activeShare())
	f.logs.err = errors.New("insert failed")

	res, err := f.svc.Download(context.Background(), "tok123", "", meta())
	require.NoError(t, err)
	res.File.Close() //nolint:errcheck
}

func TestShareAccessDownloadDeletedDocumentNotFound(t *testing.T) {
	f := newAccessFixture(t, activeShare())
	deleted := time.Now().UTC()
	f.docs.docs["d1"].DeletedAt = &deleted

	_, err := f.svc.Download(context.Background(), "tok123", "", meta())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrShareNotFound.Code, appErr.Code)
	assert.Equal(t, 404, appErr.Status)
}
