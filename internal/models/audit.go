package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AuditAction constants represent dashboard actions recorded in the audit trail.
const (
	AuditActionDatasetCreate     = "DATASET_CREATE"
	AuditActionDatasetUpdate     = "DATASET_UPDATE"
	AuditActionDatasetDelete     = "DATASET_DELETE"
	AuditActionDatasetDownload   = "DATASET_DOWNLOAD"
	AuditActionShopifyImport     = "SHOPIFY_IMPORT"
	AuditActionShopifySync       = "SHOPIFY_SYNC"
	AuditActionJobReview         = "JOB_REVIEW"
	AuditActionAutoApprovalWrite = "AUTO_APPROVAL_SET"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string         `db:"id" json:"id"`
	RequestID  *string        `db:"request_id" json:"request_id,omitempty"`
	Action     string         `db:"action" json:"action"`
	Resource   string         `db:"resource" json:"resource"`
	ResourceID *string        `db:"resource_id" json:"resource_id,omitempty"`
	Details    types.JSONText `db:"details" json:"details,omitempty"`
	Status     int            `db:"status" json:"status"`
	IPAddress  string         `db:"ip_address" json:"ip_address"`
	UserAgent  string         `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit trail listings.
type AuditFilter struct {
	Action   string
	Resource string
	Limit    int
}
