package models

import "time"

// DocumentShare is a public sharing grant for one document. The token is the
// only credential embedded in the link; password protection, expiry and a
// download quota are optional. Rows are never hard-deleted: a revoke flips
// IsActive to false and the row remains for the audit trail.
type DocumentShare struct {
	ID            string     `db:"id" json:"id"`
	Token         string     `db:"token" json:"token"`
	DocumentID    string     `db:"document_id" json:"document_id"`
	PatientID     string     `db:"patient_id" json:"patient_id"`
	PasswordHash  *string    `db:"password_hash" json:"-"`
	ExpiresAt     *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	MaxDownloads  *int       `db:"max_downloads" json:"max_downloads,omitempty"`
	DownloadCount int        `db:"download_count" json:"download_count"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	Notes         string     `db:"notes" json:"notes,omitempty"`
	CreatedBy     string     `db:"created_by" json:"created_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// HasPassword reports whether the share requires a password.
func (s *DocumentShare) HasPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

// ShareAccess captures the accessibility computation for one request. The
// failing predicates are not mutually exclusive in storage; accessibility
// treats any failing predicate as terminal for the current request.
type ShareAccess struct {
	Share           *DocumentShare `json:"-"`
	IsActive        bool           `json:"is_active"`
	IsExpired       bool           `json:"is_expired"`
	HasReachedLimit bool           `json:"has_reached_limit"`
	IsAccessible    bool           `json:"is_accessible"`
}

// Evaluate computes accessibility flags for a share at the given instant.
func (s *DocumentShare) Evaluate(now time.Time) ShareAccess {
	access := ShareAccess{Share: s, IsActive: s.IsActive}
	if s.ExpiresAt != nil && now.After(*s.ExpiresAt) {
		access.IsExpired = true
	}
	if s.MaxDownloads != nil && s.DownloadCount >= *s.MaxDownloads {
		access.HasReachedLimit = true
	}
	access.IsAccessible = access.IsActive && !access.IsExpired && !access.HasReachedLimit
	return access
}

// ShareFilter captures filtering criteria for listing shares.
type ShareFilter struct {
	DocumentID string
	PatientID  string
	ActiveOnly bool
	Limit      int
	Offset     int
}
