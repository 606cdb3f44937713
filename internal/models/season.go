package models

import "time"

// Season identifies one academic cycle. Numbers increase monotonically and
// exactly one season is flagged current at any time.
type Season struct {
	ID           string    `db:"id" json:"id"`
	Number       int       `db:"number" json:"season"`
	Title        string    `db:"title" json:"title"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	IsCurrent    bool      `db:"is_current" json:"is_current"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
