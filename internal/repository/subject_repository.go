package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/query"
)

// SubjectRepository manages persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectColumns = "id, title, code, season, subdivision, status, start_at, zoom_link, zoom_id, zoom_pwd, lecturer, attachments, created_at, updated_at"

// List returns subjects matching the season scope predicate and the
// caller-supplied filters. The count is taken before pagination.
func (r *SubjectRepository) List(ctx context.Context, scope query.Node, filter models.SubjectFilter) ([]models.Subject, int, error) {
	conditions := []string{}
	where, args := query.ToSQL(scope, 0)
	if where != "" {
		conditions = append(conditions, where)
	}

	if filter.Subdivision != "" {
		conditions = append(conditions, fmt.Sprintf("subdivision = $%d", len(args)+1))
		args = append(args, filter.Subdivision)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, string(st))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) == 0 {
		conditions = append(conditions, "1=1")
	}
	cond := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM subjects WHERE %s", cond), args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	allowedSorts := map[string]string{
		"title":      "title",
		"code":       "code",
		"start_at":   "start_at",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "start_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	listQuery := fmt.Sprintf("SELECT %s FROM subjects WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		subjectColumns, cond, column, order, size, (page-1)*size)

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, total, nil
}

// FindByID fetches a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1", subjectColumns), id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.Status == "" {
		subject.Status = models.SubjectStatusInit
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now
	const q = `INSERT INTO subjects (id, title, code, season, subdivision, status, start_at, zoom_link, zoom_id, zoom_pwd, lecturer, attachments, created_at, updated_at)
        VALUES (:id, :title, :code, :season, :subdivision, :status, :start_at, :zoom_link, :zoom_id, :zoom_pwd, :lecturer, :attachments, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a subject. The season is fixed at
// creation.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const q = `UPDATE subjects SET title = :title, code = :code, subdivision = :subdivision, status = :status,
        start_at = :start_at, zoom_link = :zoom_link, zoom_id = :zoom_id, zoom_pwd = :zoom_pwd,
        lecturer = :lecturer, attachments = :attachments, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, subject)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return requireRow(res, "update subject")
}

// Delete removes a subject.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return requireRow(res, "delete subject")
}
