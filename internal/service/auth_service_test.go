package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nutriplan/practice-api/internal/models"
	appErrors "github.com/nutriplan/practice-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	findByIDErr      error
	refreshTokens    map[string]*models.RefreshToken
	createRefreshErr error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	revokedAll       bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "dietitian@example.com", PasswordHash: string(password), Active: true, Role: models.RoleDietitian}}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "dietitian@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "u1", res.User.ID)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleDietitian, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "dietitian@example.com", PasswordHash: string(password), Active: true}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "dietitian@example.com", Password: "wrong"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "dietitian@example.com", PasswordHash: string(password), Active: false}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "dietitian@example.com", Password: "password"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenRotation(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "dietitian@example.com", PasswordHash: string(password), Active: true}}
	svc := newAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "dietitian@example.com", Password: "password"})
	require.NoError(t, err)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := &mockAuthRepo{
		userByEmail: &models.User{ID: "u1", Active: true},
		refreshTokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
		},
	}
	svc := newAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := &mockAuthRepo{
		refreshTokens: map[string]*models.RefreshToken{
			"tok": {ID: "rt1", UserID: "u2", Token: "tok", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
	}
	svc := newAuthService(repo)

	err := svc.Logout(context.Background(), "tok", "u1", models.LoginRequest{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "dietitian@example.com", PasswordHash: string(password), Active: true}}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old-password", NewPassword: "new-password"})
	require.NoError(t, err)
	assert.True(t, repo.revokedAll)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.userByEmail.PasswordHash), []byte("new-password")))
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: string(password), Active: true}}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "new-password"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
