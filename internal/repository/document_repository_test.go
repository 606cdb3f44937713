package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/query"
)

func newDocumentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "file_id", "mime_type", "name", "type", "season", "role", "description", "labels", "author_id", "created_at", "updated_at"}).
		AddRow("d1", "f1", "application/pdf", "Handbook", "COMMON", 3, "", "", pq.StringArray{}, "u1", time.Now(), time.Now())
}

func TestDocumentRepositoryListScoped(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	scope := query.NewAnd(
		query.Equals{Field: "type", Value: "COMMON"},
		query.Equals{Field: "season", Value: 3},
	)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE (type = $1 AND season = $2)")).
		WithArgs("COMMON", 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (type = $1 AND season = $2) ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("COMMON", 3).
		WillReturnRows(documentRows())

	docs, total, err := repo.List(context.Background(), scope, 1, 20, "", "")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListUnscoped(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 ORDER BY name ASC LIMIT 50 OFFSET 50")).
		WillReturnRows(documentRows())

	_, _, err := repo.List(context.Background(), nil, 2, 50, "name", "asc")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListRejectsUnknownSort(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WillReturnRows(documentRows())

	_, _, err := repo.List(context.Background(), nil, 1, 20, "labels; DROP TABLE documents", "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryFindVisibleByID(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	scope := query.Node(query.Equals{Field: "season", Value: 3})
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND season = $2")).
		WithArgs("d1", 3).
		WillReturnRows(documentRows())

	doc, err := repo.FindVisibleByID(context.Background(), "d1", scope)
	require.NoError(t, err)
	assert.Equal(t, "d1", doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryFindVisibleByIDOutOfScope(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	scope := query.Node(query.Equals{Field: "season", Value: 3})
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND season = $2")).
		WithArgs("d1", 3).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindVisibleByID(context.Background(), "d1", scope)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDocumentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{FileID: "f1", Name: "Handbook", Type: models.DocumentTypeCommon, Season: 3, AuthorID: "u1"}
	err := repo.Create(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
