package models

import "time"

// AccessAction enumerates the kinds of public access attempts recorded
// against a share.
type AccessAction string

const (
	AccessActionView     AccessAction = "view"
	AccessActionDownload AccessAction = "download"
	AccessActionVerify   AccessAction = "verify"
)

// DocumentAccessLog is an append-only audit record of a public access attempt
// against a share. One row per attempt.
type DocumentAccessLog struct {
	ID              string       `db:"id" json:"id"`
	DocumentShareID string       `db:"document_share_id" json:"document_share_id"`
	Action          AccessAction `db:"action" json:"action"`
	IPAddress       string       `db:"ip_address" json:"ip_address"`
	UserAgent       string       `db:"user_agent" json:"user_agent"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}
