package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vuledev/sams-api/internal/models"
)

// AbsenceRepository manages absence submissions and the forms that gate
// them.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository constructs an AbsenceRepository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

// FindForm fetches the managed form of the given type.
func (r *AbsenceRepository) FindForm(ctx context.Context, formType models.FormType) (*models.ManageForm, error) {
	const q = "SELECT id, type, status, subject_id, updated_at FROM manage_forms WHERE type = $1"
	var form models.ManageForm
	if err := r.db.GetContext(ctx, &form, q, formType); err != nil {
		return nil, err
	}
	return &form, nil
}

// UpsertForm creates or updates the single form of the given type.
func (r *AbsenceRepository) UpsertForm(ctx context.Context, form *models.ManageForm) error {
	if form.ID == "" {
		form.ID = uuid.NewString()
	}
	form.UpdatedAt = time.Now().UTC()
	const q = `INSERT INTO manage_forms (id, type, status, subject_id, updated_at)
        VALUES (:id, :type, :status, :subject_id, :updated_at)
        ON CONFLICT (type) DO UPDATE SET status = EXCLUDED.status, subject_id = EXCLUDED.subject_id, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, q, form); err != nil {
		return fmt.Errorf("upsert form: %w", err)
	}
	return nil
}

const absenceColumns = "id, student_id, subject_id, reason, note, created_at, updated_at"

// ListBySubject returns absences filed against a subject, newest first,
// with the count taken before pagination.
func (r *AbsenceRepository) ListBySubject(ctx context.Context, subjectID string, page, size int) ([]models.Absence, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM absences WHERE subject_id = $1", subjectID); err != nil {
		return nil, 0, fmt.Errorf("count absences: %w", err)
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	q := fmt.Sprintf("SELECT %s FROM absences WHERE subject_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d",
		absenceColumns, size, (page-1)*size)
	var absences []models.Absence
	if err := r.db.SelectContext(ctx, &absences, q, subjectID); err != nil {
		return nil, 0, fmt.Errorf("list absences: %w", err)
	}
	return absences, total, nil
}

// ListByStudent returns every absence a student has filed for the given
// subjects.
func (r *AbsenceRepository) ListByStudent(ctx context.Context, studentID string, subjectIDs []string) ([]models.Absence, error) {
	if len(subjectIDs) == 0 {
		q := fmt.Sprintf("SELECT %s FROM absences WHERE student_id = $1 ORDER BY created_at DESC", absenceColumns)
		var absences []models.Absence
		if err := r.db.SelectContext(ctx, &absences, q, studentID); err != nil {
			return nil, fmt.Errorf("list student absences: %w", err)
		}
		return absences, nil
	}
	q, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM absences WHERE student_id = ? AND subject_id IN (?) ORDER BY created_at DESC",
		absenceColumns), studentID, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("build student absences query: %w", err)
	}
	var absences []models.Absence
	if err := r.db.SelectContext(ctx, &absences, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list student absences: %w", err)
	}
	return absences, nil
}

// FindByStudentAndSubject fetches the absence a student filed for a
// subject, if any.
func (r *AbsenceRepository) FindByStudentAndSubject(ctx context.Context, studentID, subjectID string) (*models.Absence, error) {
	q := fmt.Sprintf("SELECT %s FROM absences WHERE student_id = $1 AND subject_id = $2", absenceColumns)
	var absence models.Absence
	if err := r.db.GetContext(ctx, &absence, q, studentID, subjectID); err != nil {
		return nil, err
	}
	return &absence, nil
}

// FindByID fetches an absence by ID.
func (r *AbsenceRepository) FindByID(ctx context.Context, id string) (*models.Absence, error) {
	q := fmt.Sprintf("SELECT %s FROM absences WHERE id = $1", absenceColumns)
	var absence models.Absence
	if err := r.db.GetContext(ctx, &absence, q, id); err != nil {
		return nil, err
	}
	return &absence, nil
}

// Create inserts a new absence.
func (r *AbsenceRepository) Create(ctx context.Context, absence *models.Absence) error {
	if absence.ID == "" {
		absence.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if absence.CreatedAt.IsZero() {
		absence.CreatedAt = now
	}
	absence.UpdatedAt = now
	const q = `INSERT INTO absences (id, student_id, subject_id, reason, note, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :reason, :note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, absence); err != nil {
		return fmt.Errorf("create absence: %w", err)
	}
	return nil
}

// Update rewrites the reason and note of an absence.
func (r *AbsenceRepository) Update(ctx context.Context, absence *models.Absence) error {
	absence.UpdatedAt = time.Now().UTC()
	const q = "UPDATE absences SET reason = :reason, note = :note, updated_at = :updated_at WHERE id = :id"
	res, err := r.db.NamedExecContext(ctx, q, absence)
	if err != nil {
		return fmt.Errorf("update absence: %w", err)
	}
	return requireRow(res, "update absence")
}

// Delete removes an absence.
func (r *AbsenceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM absences WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete absence: %w", err)
	}
	return requireRow(res, "delete absence")
}
