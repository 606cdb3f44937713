package models

import (
	"time"

	"github.com/lib/pq"
)

// Audit actions recorded in the trail.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionCreate         = "CREATE"
	AuditActionUpdate         = "UPDATE"
	AuditActionDelete         = "DELETE"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionExport         = "EXPORT"
)

// AuditLog captures who did what, against which resource, in which season.
type AuditLog struct {
	ID          string         `db:"id" json:"id"`
	Action      string         `db:"action" json:"action"`
	Resource    string         `db:"resource" json:"resource"`
	ResourceID  *string        `db:"resource_id" json:"resource_id,omitempty"`
	Season      int            `db:"season" json:"season"`
	AuthorID    *string        `db:"author_id" json:"author_id,omitempty"`
	AuthorEmail string         `db:"author_email" json:"author_email"`
	AuthorName  string         `db:"author_name" json:"author_name"`
	AuthorRoles pq.StringArray `db:"author_roles" json:"author_roles"`
	Payload     []byte         `db:"payload" json:"payload,omitempty"`
	IPAddress   string         `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// AuditFilter captures filtering criteria for browsing the audit trail.
type AuditFilter struct {
	Action    string
	Resource  string
	AuthorID  string
	Season    *int
	Page      int
	PageSize  int
	SortOrder string
}
