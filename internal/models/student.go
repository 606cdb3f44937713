package models

import "time"

// Student represents a learner account.
type Student struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentSeason records a student's membership in one season.
type StudentSeason struct {
	StudentID string    `db:"student_id" json:"-"`
	Season    int       `db:"season" json:"season"`
	Group     string    `db:"group_name" json:"group"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// StudentDetail is a student together with their season memberships,
// most recent last.
type StudentDetail struct {
	Student
	Seasons []StudentSeason `json:"seasons_info"`
}

// LatestSeason returns the most recent season the student belongs to,
// or zero when they have none.
func (d *StudentDetail) LatestSeason() int {
	if len(d.Seasons) == 0 {
		return 0
	}
	return d.Seasons[len(d.Seasons)-1].Season
}

// InSeason reports whether the student belongs to the given season.
func (d *StudentDetail) InSeason(season int) bool {
	for _, s := range d.Seasons {
		if s.Season == season {
			return true
		}
	}
	return false
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	Search    string
	Group     string
	Season    *int
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
