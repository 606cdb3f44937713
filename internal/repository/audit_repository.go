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

// AuditRepository appends to and reads the audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit entry. Entries are immutable once written.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO audit_logs (id, action, resource, resource_id, season, author_id, author_email, author_name, author_roles, payload, ip_address, created_at)
        VALUES (:id, :action, :resource, :resource_id, :season, :author_id, :author_email, :author_name, :author_roles, :payload, :ip_address, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, entry); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List returns audit entries matching the filter, newest first by default.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)+1))
		args = append(args, filter.Action)
	}
	if filter.Resource != "" {
		conditions = append(conditions, fmt.Sprintf("resource = $%d", len(args)+1))
		args = append(args, filter.Resource)
	}
	if filter.AuthorID != "" {
		conditions = append(conditions, fmt.Sprintf("author_id = $%d", len(args)+1))
		args = append(args, filter.AuthorID)
	}
	if filter.Season != nil {
		conditions = append(conditions, fmt.Sprintf("season = $%d", len(args)+1))
		args = append(args, *filter.Season)
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM audit_logs WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
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

	q := fmt.Sprintf(`SELECT id, action, resource, resource_id, season, author_id, author_email, author_name, author_roles, payload, ip_address, created_at
        FROM audit_logs WHERE %s ORDER BY created_at %s LIMIT %d OFFSET %d`, where, order, size, (page-1)*size)

	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, q, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, total, nil
}

// DeleteOlderThan prunes entries past the retention window, returning the
// rows removed.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM audit_logs WHERE created_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("prune audit logs: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune audit logs: %w", err)
	}
	return rows, nil
}
