package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeasonMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSeasonRepositoryFindCurrent(t *testing.T) {
	db, mock, cleanup := newSeasonMock(t)
	defer cleanup()
	repo := NewSeasonRepository(db)

	rows := sqlmock.NewRows([]string{"id", "number", "title", "academic_year", "is_current", "created_at", "updated_at"}).
		AddRow("s4", 4, "Season 4", "2025/2026", true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_current LIMIT 1")).WillReturnRows(rows)

	season, err := repo.FindCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, season.Number)
	assert.True(t, season.IsCurrent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeasonRepositorySetCurrent(t *testing.T) {
	db, mock, cleanup := newSeasonMock(t)
	defer cleanup()
	repo := NewSeasonRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seasons SET is_current = FALSE, updated_at = $1 WHERE is_current")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seasons SET is_current = TRUE, updated_at = $1 WHERE number = $2")).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetCurrent(context.Background(), 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeasonRepositorySetCurrentUnknownNumberRollsBack(t *testing.T) {
	db, mock, cleanup := newSeasonMock(t)
	defer cleanup()
	repo := NewSeasonRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seasons SET is_current = FALSE")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seasons SET is_current = TRUE")).
		WithArgs(sqlmock.AnyArg(), 99).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetCurrent(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
