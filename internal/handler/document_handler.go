package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nutriplan/practice-api/internal/dto"
	"github.com/nutriplan/practice-api/internal/service"
	appErrors "github.com/nutriplan/practice-api/pkg/errors"
	"github.com/nutriplan/practice-api/pkg/response"
)

// DocumentHandler wires HTTP endpoints to the document service.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Upload godoc
// @Summary Upload a patient document
// @Description Store a document file with its metadata
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param patientId formData string true "Patient ID"
// @Param title formData string true "Document title"
// @Param category formData string true "Document category"
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	doc, err := h.service.Upload(c.Request.Context(), req, header, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Description List document metadata with optional filters
// @Tags Documents
// @Produce json
// @Param patient_id query string false "Filter by patient"
// @Param category query string false "Filter by category"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	filter := dto.DocumentFilter{
		PatientID: c.Query("patient_id"),
		Category:  c.Query("category"),
		Limit:     queryInt(c, "limit"),
		Offset:    queryInt(c, "offset"),
	}

	docs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, docs, nil)
}

// Get godoc
// @Summary Get one document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, doc, nil)
}

// DownloadURL godoc
// @Summary Issue a signed staff download URL
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	res, err := h.service.GetDownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Download godoc
// @Summary Stream a document file
// @Description Stream the document file referenced by a signed token
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /documents/{id}/file [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, file, err := h.service.Download(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+doc.Title+`"`)
	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MimeType, file, nil)
}

// Delete godoc
// @Summary Soft-delete a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func queryInt(c *gin.Context, key string) int {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
