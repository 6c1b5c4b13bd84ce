package handler

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nutriplan/practice-api/internal/dto"
	"github.com/nutriplan/practice-api/internal/service"
	appErrors "github.com/nutriplan/practice-api/pkg/errors"
)

type shareAccessService interface {
	Info(ctx context.Context, token string, meta service.RequestMeta) (*dto.PublicShareInfo, error)
	VerifyPassword(ctx context.Context, token, password string, meta service.RequestMeta) error
	Download(ctx context.Context, token, password string, meta service.RequestMeta) (*service.ShareDownload, error)
	Preview(ctx context.Context, token, password string, meta service.RequestMeta) (*service.ShareDownload, error)
}

// PublicShareHandler serves the anonymous share-link endpoints. These routes
// carry no staff authentication and use a flat payload shape instead of the
// staff envelope, since they are consumed by the public link page.
type PublicShareHandler struct {
	service shareAccessService
}

// NewPublicShareHandler creates a new handler.
func NewPublicShareHandler(svc shareAccessService) *PublicShareHandler {
	return &PublicShareHandler{service: svc}
}

// Info godoc
// @Summary Public share info
// @Description Resolve a share token into document metadata and accessibility flags
// @Tags Public
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} dto.PublicShareInfo
// @Failure 404 {object} map[string]interface{}
// @Router /public/documents/{token} [get]
func (h *PublicShareHandler) Info(c *gin.Context) {
	info, err := h.service.Info(c.Request.Context(), c.Param("token"), requestMeta(c))
	if err != nil {
		h.publicError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": info})
}

// VerifyPassword godoc
// @Summary Verify a share password
// @Description Check a password attempt against a protected share
// @Tags Public
// @Accept json
// @Produce json
// @Param token path string true "Share token"
// @Param payload body dto.VerifySharePasswordRequest true "Password attempt"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Router /public/documents/{token}/verify [post]
func (h *PublicShareHandler) VerifyPassword(c *gin.Context) {
	var req dto.VerifySharePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Password is required"})
		return
	}

	if err := h.service.VerifyPassword(c.Request.Context(), c.Param("token"), req.Password, requestMeta(c)); err != nil {
		h.publicError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Download godoc
// @Summary Download a shared document
// @Description Stream the shared file as an attachment, consuming one download
// @Tags Public
// @Produce octet-stream
// @Param token path string true "Share token"
// @Param password query string false "Share password when the link is protected"
// @Success 200 {file} binary
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /public/documents/{token}/download [get]
func (h *PublicShareHandler) Download(c *gin.Context) {
	res, err := h.service.Download(c.Request.Context(), c.Param("token"), c.Query("password"), requestMeta(c))
	if err != nil {
		h.publicError(c, err)
		return
	}
	defer res.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.DataFromReader(http.StatusOK, res.SizeBytes, res.MimeType, res.File, nil)
}

// Preview godoc
// @Summary Preview a shared document inline
// @Description Stream the shared file inline without consuming the download quota
// @Tags Public
// @Produce octet-stream
// @Param token path string true "Share token"
// @Param password query string false "Share password when the link is protected"
// @Success 200 {file} binary
// @Failure 403 {object} map[string]interface{}
// @Failure 415 {object} map[string]interface{}
// @Router /public/documents/{token}/preview [get]
func (h *PublicShareHandler) Preview(c *gin.Context) {
	res, err := h.service.Preview(c.Request.Context(), c.Param("token"), c.Query("password"), requestMeta(c))
	if err != nil {
		h.publicError(c, err)
		return
	}
	defer res.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", res.Filename))
	c.DataFromReader(http.StatusOK, res.SizeBytes, res.MimeType, res.File, nil)
}

func (h *PublicShareHandler) publicError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	body := gin.H{"success": false, "error": appErr.Message}
	switch appErr.Code {
	case appErrors.ErrTooManyAttempts.Code:
		if retryAfter, ok := service.RetryAfterFromError(err); ok && retryAfter > 0 {
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
		}
	case appErrors.ErrPasswordRequired.Code:
		// Omitted password and wrong password both 401, but only the former
		// carries the flag so the link page knows to prompt.
		body["requires_password"] = true
	}
	c.JSON(appErr.Status, body)
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
