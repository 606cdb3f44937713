package models

import (
	"time"

	"github.com/lib/pq"
)

// DocumentType classifies documents for season/role visibility scoping.
type DocumentType string

const (
	DocumentTypeAnnual   DocumentType = "ANNUAL"
	DocumentTypeCommon   DocumentType = "COMMON"
	DocumentTypeInternal DocumentType = "INTERNAL"
	DocumentTypeStudent  DocumentType = "STUDENT"
)

// Valid reports whether the value is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeAnnual, DocumentTypeCommon, DocumentTypeInternal, DocumentTypeStudent:
		return true
	}
	return false
}

// Document represents a stored document record. The season is assigned at
// creation and never changes.
type Document struct {
	ID          string         `db:"id" json:"id"`
	FileID      string         `db:"file_id" json:"file_id"`
	MimeType    string         `db:"mime_type" json:"mime_type,omitempty"`
	Name        string         `db:"name" json:"name"`
	Type        DocumentType   `db:"type" json:"type"`
	Season      int            `db:"season" json:"season"`
	Role        string         `db:"role" json:"role"`
	Description string         `db:"description" json:"description,omitempty"`
	Labels      pq.StringArray `db:"labels" json:"label"`
	AuthorID    string         `db:"author_id" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AuthorView is the denormalised author reference embedded in document views.
type AuthorView struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Roles        []Role    `json:"roles"`
	LatestSeason int       `json:"latest_season"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// DocumentView is a document enriched with its resolved author.
type DocumentView struct {
	Document
	Author AuthorView `json:"author"`
}

// DocumentFilter captures the caller-supplied listing parameters. Season and
// Type are pointers: nil means unspecified, a zero season is the all-seasons
// sentinel resolved by the visibility rules.
type DocumentFilter struct {
	Search    string
	Labels    []string
	Roles     []string
	Season    *int
	Type      *DocumentType
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
