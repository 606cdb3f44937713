package models

import (
	"time"

	"github.com/lib/pq"
)

// SubjectStatus tracks a subject through its lifecycle within a season.
type SubjectStatus string

const (
	SubjectStatusInit      SubjectStatus = "INIT"
	SubjectStatusSentStudy SubjectStatus = "SENT_STUDY"
	SubjectStatusCompleted SubjectStatus = "COMPLETED"
)

// Subject represents a course unit scoped to exactly one season.
type Subject struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Code        string         `db:"code" json:"code"`
	Season      int            `db:"season" json:"season"`
	Subdivision string         `db:"subdivision" json:"subdivision"`
	Status      SubjectStatus  `db:"status" json:"status"`
	StartAt     *time.Time     `db:"start_at" json:"start_at,omitempty"`
	ZoomLink    string         `db:"zoom_link" json:"zoom_link,omitempty"`
	ZoomID      string         `db:"zoom_id" json:"zoom_id,omitempty"`
	ZoomPwd     string         `db:"zoom_pwd" json:"zoom_pwd,omitempty"`
	Lecturer    string         `db:"lecturer" json:"lecturer,omitempty"`
	Attachments pq.StringArray `db:"attachments" json:"attachments"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures the caller-supplied subject listing parameters.
type SubjectFilter struct {
	Search      string
	Subdivision string
	Statuses    []SubjectStatus
	Season      *int
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
