package models

import "time"

// FormStatus gates whether student-facing forms accept submissions.
type FormStatus string

const (
	FormStatusInactive FormStatus = "INACTIVE"
	FormStatusActive   FormStatus = "ACTIVE"
	FormStatusClosed   FormStatus = "CLOSED"
)

// FormType names the managed form kinds.
type FormType string

const (
	FormTypeSubjectAbsent FormType = "SUBJECT_ABSENT"
)

// ManageForm controls a student-facing submission window. At most one form
// exists per type; the subject it targets changes per teaching cycle.
type ManageForm struct {
	ID        string     `db:"id" json:"id"`
	Type      FormType   `db:"type" json:"type"`
	Status    FormStatus `db:"status" json:"status"`
	SubjectID *string    `db:"subject_id" json:"subject_id,omitempty"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Absence is a leave request a student files for one subject.
type Absence struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Reason    string    `db:"reason" json:"reason"`
	Note      string    `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
