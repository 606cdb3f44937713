package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vuledev/sams-api/internal/models"
)

// StudentRepository manages persistence for student accounts and their
// season memberships.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = "id, email, password_hash, full_name, phone, active, last_login, created_at, updated_at"

// List returns students matching the provided filters together with their
// season memberships.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Season != nil {
		conditions = append(conditions, fmt.Sprintf("s.id IN (SELECT student_id FROM student_seasons WHERE season = $%d)", len(args)+1))
		args = append(args, *filter.Season)
	}
	if filter.Group != "" {
		conditions = append(conditions, fmt.Sprintf("s.id IN (SELECT student_id FROM student_seasons WHERE group_name = $%d)", len(args)+1))
		args = append(args, filter.Group)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM students s WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	allowedSorts := map[string]string{
		"email":      "s.email",
		"full_name":  "s.full_name",
		"created_at": "s.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	listQuery := fmt.Sprintf(`SELECT s.id, s.email, s.password_hash, s.full_name, s.phone, s.active, s.last_login, s.created_at, s.updated_at
        FROM students s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`, where, column, order, size, (page-1)*size)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	details := make([]models.StudentDetail, len(students))
	ids := make([]string, len(students))
	for i, s := range students {
		details[i] = models.StudentDetail{Student: s}
		ids[i] = s.ID
	}
	if len(ids) > 0 {
		seasons, err := r.seasonsFor(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		byStudent := map[string][]models.StudentSeason{}
		for _, ss := range seasons {
			byStudent[ss.StudentID] = append(byStudent[ss.StudentID], ss)
		}
		for i := range details {
			details[i].Seasons = byStudent[details[i].ID]
		}
	}
	return details, total, nil
}

// FindByID fetches a student with season memberships.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns), id); err != nil {
		return nil, err
	}
	seasons, err := r.seasonsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return &models.StudentDetail{Student: student, Seasons: seasons}, nil
}

// FindByEmail fetches a student account by email, without memberships.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, fmt.Sprintf("SELECT %s FROM students WHERE LOWER(email) = LOWER($1)", studentColumns), email); err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) seasonsFor(ctx context.Context, studentIDs []string) ([]models.StudentSeason, error) {
	q, args, err := sqlx.In("SELECT student_id, season, group_name, code, created_at FROM student_seasons WHERE student_id IN (?) ORDER BY season ASC", studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build seasons query: %w", err)
	}
	var seasons []models.StudentSeason
	if err := r.db.SelectContext(ctx, &seasons, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list student seasons: %w", err)
	}
	return seasons, nil
}

// Create inserts a new student account.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const q = `INSERT INTO students (id, email, password_hash, full_name, phone, active, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :full_name, :phone, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites the mutable profile fields of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const q = `UPDATE students SET email = :email, full_name = :full_name, phone = :phone,
        active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return requireRow(res, "update student")
}

// AddSeason enrolls the student into a season. Re-enrolling the same season
// updates group and code in place.
func (r *StudentRepository) AddSeason(ctx context.Context, membership *models.StudentSeason) error {
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO student_seasons (student_id, season, group_name, code, created_at)
        VALUES (:student_id, :season, :group_name, :code, :created_at)
        ON CONFLICT (student_id, season) DO UPDATE SET group_name = EXCLUDED.group_name, code = EXCLUDED.code`
	if _, err := r.db.NamedExecContext(ctx, q, membership); err != nil {
		return fmt.Errorf("add student season: %w", err)
	}
	return nil
}

// RemoveSeason drops the student's membership in a season.
func (r *StudentRepository) RemoveSeason(ctx context.Context, studentID string, season int) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM student_seasons WHERE student_id = $1 AND season = $2", studentID, season)
	if err != nil {
		return fmt.Errorf("remove student season: %w", err)
	}
	return requireRow(res, "remove student season")
}

// UpdatePassword stores a new password hash.
func (r *StudentRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE students SET password_hash = $1, updated_at = $2 WHERE id = $3", hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update student password: %w", err)
	}
	return requireRow(res, "update student password")
}

// UpdateLastLogin stamps the account's last successful login.
func (r *StudentRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE students SET last_login = $1 WHERE id = $2", at, id); err != nil {
		return fmt.Errorf("update student last login: %w", err)
	}
	return nil
}

// Delete removes a student account and its memberships.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete student: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM student_seasons WHERE student_id = $1", id); err != nil {
		return fmt.Errorf("delete student seasons: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if err := requireRow(res, "delete student"); err != nil {
		return err
	}
	return tx.Commit()
}
