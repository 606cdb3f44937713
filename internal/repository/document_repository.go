package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/query"
)

// DocumentRepository manages persistence for document records.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

var documentSorts = map[string]string{
	"name":       "name",
	"season":     "season",
	"type":       "type",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// List returns documents matching the compiled scope predicate, newest
// first unless overridden. The total count is taken over the same predicate
// before pagination is applied.
func (r *DocumentRepository) List(ctx context.Context, scope query.Node, page, size int, sortBy, sortOrder string) ([]models.Document, int, error) {
	where, args := query.ToSQL(scope, 0)
	if where == "" {
		where = "1=1"
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM documents WHERE %s", where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	column, ok := documentSorts[sortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	listQuery := fmt.Sprintf(`SELECT id, file_id, mime_type, name, type, season, role, description, labels, author_id, created_at, updated_at
        FROM documents WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`, where, column, order, size, offset)

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	return docs, total, nil
}

// FindByID fetches a document by ID.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `SELECT id, file_id, mime_type, name, type, season, role, description, labels, author_id, created_at, updated_at
        FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, q, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindVisibleByID fetches a document by ID constrained to the scope
// predicate, so a record outside the caller's visibility behaves exactly
// like a missing one.
func (r *DocumentRepository) FindVisibleByID(ctx context.Context, id string, scope query.Node) (*models.Document, error) {
	where, args := query.ToSQL(scope, 1)
	q := `SELECT id, file_id, mime_type, name, type, season, role, description, labels, author_id, created_at, updated_at
        FROM documents WHERE id = $1`
	if where != "" {
		q += " AND " + where
	}
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, q, append([]interface{}{id}, args...)...); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Create inserts a new document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	const q = `INSERT INTO documents (id, file_id, mime_type, name, type, season, role, description, labels, author_id, created_at, updated_at)
        VALUES (:id, :file_id, :mime_type, :name, :type, :season, :role, :description, :labels, :author_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a document. The season and author
// are fixed at creation.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const q = `UPDATE documents SET name = :name, type = :type, role = :role, description = :description,
        labels = :labels, mime_type = :mime_type, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, doc)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a document record.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
