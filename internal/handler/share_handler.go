package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nutriplan/practice-api/internal/dto"
	"github.com/nutriplan/practice-api/internal/service"
	appErrors "github.com/nutriplan/practice-api/pkg/errors"
	"github.com/nutriplan/practice-api/pkg/response"
)

// ShareHandler wires staff share-management endpoints to the share service.
type ShareHandler struct {
	service *service.ShareService
}

// NewShareHandler creates a new handler.
func NewShareHandler(svc *service.ShareService) *ShareHandler {
	return &ShareHandler{service: svc}
}

// Create godoc
// @Summary Issue a share link for a document
// @Description Create a public share link with optional password, expiry and download quota
// @Tags Shares
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.CreateShareRequest true "Share options"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/shares [post]
func (h *ShareHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid share payload"))
		return
	}

	res, err := h.service.Create(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// List godoc
// @Summary List share links
// @Tags Shares
// @Produce json
// @Param document_id query string false "Filter by document"
// @Param patient_id query string false "Filter by patient"
// @Param active query bool false "Only active shares"
// @Success 200 {object} response.Envelope
// @Router /shares [get]
func (h *ShareHandler) List(c *gin.Context) {
	filter := dto.ShareFilter{
		DocumentID: c.Query("document_id"),
		PatientID:  c.Query("patient_id"),
		ActiveOnly: c.Query("active") == "true",
		Limit:      queryInt(c, "limit"),
		Offset:     queryInt(c, "offset"),
	}

	shares, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, shares, nil)
}

// Get godoc
// @Summary Get one share link
// @Tags Shares
// @Produce json
// @Param id path string true "Share ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shares/{id} [get]
func (h *ShareHandler) Get(c *gin.Context) {
	res, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Update godoc
// @Summary Update a share link
// @Description Change password protection, expiry, quota or notes
// @Tags Shares
// @Accept json
// @Produce json
// @Param id path string true "Share ID"
// @Param payload body dto.UpdateShareRequest true "Share changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shares/{id} [patch]
func (h *ShareHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid share payload"))
		return
	}

	res, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Revoke godoc
// @Summary Revoke a share link
// @Description Deactivate a share link; the operation is one-way
// @Tags Shares
// @Produce json
// @Param id path string true "Share ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /shares/{id} [delete]
func (h *ShareHandler) Revoke(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Revoke(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// AccessLogs godoc
// @Summary List public access attempts for a share
// @Tags Shares
// @Produce json
// @Param id path string true "Share ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shares/{id}/access-logs [get]
func (h *ShareHandler) AccessLogs(c *gin.Context) {
	logs, pagination, err := h.service.AccessLogs(c.Request.Context(), c.Param("id"), queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs, pagination)
}

// ExportAccessLogs godoc
// @Summary Export access attempts for a share as CSV
// @Tags Shares
// @Produce text/csv
// @Param id path string true "Share ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /shares/{id}/access-logs/export [get]
func (h *ShareHandler) ExportAccessLogs(c *gin.Context) {
	data, filename, err := h.service.ExportAccessLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}
