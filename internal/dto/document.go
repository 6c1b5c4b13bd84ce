package dto

import "github.com/nutriplan/practice-api/internal/models"

// CreateDocumentRequest carries multipart upload metadata for a new document.
type CreateDocumentRequest struct {
	PatientID string `form:"patientId" json:"patientId" validate:"required"`
	Title     string `form:"title" json:"title" validate:"required"`
	Category  string `form:"category" json:"category" validate:"required"`
}

// DocumentFilter mirrors the list query parameters.
type DocumentFilter struct {
	PatientID string
	Category  string
	Limit     int
	Offset    int
}

// DocumentDownloadResponse bundles document metadata with a signed staff
// download URL.
type DocumentDownloadResponse struct {
	models.Document
	DownloadURL string `json:"download_url"`
}
