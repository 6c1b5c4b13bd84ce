package models

import "time"

// Document represents a patient document stored on disk with metadata in the
// documents table. PatientID references a patient record managed by the
// practice system; this service treats it as an opaque identifier.
type Document struct {
	ID         string     `db:"id" json:"id"`
	PatientID  string     `db:"patient_id" json:"patient_id"`
	Title      string     `db:"title" json:"title"`
	Category   string     `db:"category" json:"category"`
	FilePath   string     `db:"file_path" json:"-"`
	MimeType   string     `db:"mime_type" json:"mime_type"`
	SizeBytes  int64      `db:"size_bytes" json:"size_bytes"`
	UploadedBy string     `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt time.Time  `db:"uploaded_at" json:"uploaded_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// DocumentFilter captures filtering criteria for listing documents.
type DocumentFilter struct {
	PatientID      string
	Category       string
	IncludeDeleted bool
	Limit          int
	Offset         int
}
