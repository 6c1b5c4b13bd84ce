package dto

import (
	"time"

	"github.com/nutriplan/practice-api/internal/models"
)

// CreateShareRequest is the staff payload for issuing a new share link.
type CreateShareRequest struct {
	Password     *string    `json:"password,omitempty" validate:"omitempty,min=4"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MaxDownloads *int       `json:"max_downloads,omitempty" validate:"omitempty,min=1"`
	Notes        string     `json:"notes,omitempty"`
}

// UpdateShareRequest mutates an existing share. Nil fields are left
// untouched; ClearPassword removes password protection.
type UpdateShareRequest struct {
	Password      *string    `json:"password,omitempty" validate:"omitempty,min=4"`
	ClearPassword bool       `json:"clear_password,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxDownloads  *int       `json:"max_downloads,omitempty" validate:"omitempty,min=1"`
	Notes         *string    `json:"notes,omitempty"`
}

// ShareResponse is returned to staff after issuing or inspecting a share.
type ShareResponse struct {
	models.DocumentShare
	ShareURL    string `json:"share_url"`
	HasPassword bool   `json:"has_password"`
}

// ShareFilter mirrors the staff list query parameters.
type ShareFilter struct {
	DocumentID string
	PatientID  string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// VerifySharePasswordRequest is the public verify payload.
type VerifySharePasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// PublicShareInfo is the public token-info payload. It exposes only what an
// anonymous link holder may see.
type PublicShareInfo struct {
	Token            string     `json:"token"`
	DocumentTitle    string     `json:"document_title"`
	MimeType         string     `json:"mime_type"`
	SizeBytes        int64      `json:"size_bytes"`
	RequiresPassword bool       `json:"requires_password"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	MaxDownloads     *int       `json:"max_downloads,omitempty"`
	DownloadCount    int        `json:"download_count"`
	IsActive         bool       `json:"is_active"`
	IsExpired        bool       `json:"is_expired"`
	HasReachedLimit  bool       `json:"has_reached_limit"`
	IsAccessible     bool       `json:"is_accessible"`
}
