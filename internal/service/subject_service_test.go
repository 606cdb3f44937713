package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/query"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type subjectRepoStub struct {
	subjects  []models.Subject
	lastScope query.Node
}

func (s *subjectRepoStub) List(ctx context.Context, scope query.Node, filter models.SubjectFilter) ([]models.Subject, int, error) {
	s.lastScope = scope
	return s.subjects, len(s.subjects), nil
}

func (s *subjectRepoStub) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	for i := range s.subjects {
		if s.subjects[i].ID == id {
			return &s.subjects[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *subjectRepoStub) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = "generated"
	s.subjects = append(s.subjects, *subject)
	return nil
}

func (s *subjectRepoStub) Update(ctx context.Context, subject *models.Subject) error { return nil }
func (s *subjectRepoStub) Delete(ctx context.Context, id string) error              { return nil }

func enrolledStudent(seasons ...int) *models.StudentDetail {
	detail := &models.StudentDetail{Student: models.Student{ID: "s1", Email: "s@example.com", Active: true}}
	for _, n := range seasons {
		detail.Seasons = append(detail.Seasons, models.StudentSeason{StudentID: "s1", Season: n})
	}
	return detail
}

func TestSubjectServiceListScopesSeason(t *testing.T) {
	repo := &subjectRepoStub{}
	svc := NewSubjectService(repo, seasonStub{current: 4}, nil, nil, nil)

	_, _, err := svc.List(context.Background(), regularAdmin(3), models.SubjectFilter{})
	require.NoError(t, err)

	sql, args := query.ToSQL(repo.lastScope, 0)
	assert.Equal(t, "season = $1", sql)
	assert.Equal(t, []interface{}{3}, args)
}

func TestSubjectServiceListAllSeasonsDenied(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{}, seasonStub{current: 4}, nil, nil, nil)

	_, _, err := svc.List(context.Background(), regularAdmin(3), models.SubjectFilter{Season: intPtr(0)})
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
}

func TestSubjectServiceListForStudentDefaultsToLatest(t *testing.T) {
	repo := &subjectRepoStub{}
	svc := NewSubjectService(repo, seasonStub{current: 4}, nil, nil, nil)

	_, _, err := svc.ListForStudent(context.Background(), enrolledStudent(2, 3), models.SubjectFilter{})
	require.NoError(t, err)

	sql, args := query.ToSQL(repo.lastScope, 0)
	assert.Equal(t, "season = $1", sql)
	assert.Equal(t, []interface{}{3}, args)
}

func TestSubjectServiceListForStudentForeignSeasonDenied(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{}, seasonStub{current: 4}, nil, nil, nil)

	_, _, err := svc.ListForStudent(context.Background(), enrolledStudent(2, 3), models.SubjectFilter{Season: intPtr(4)})
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
}

func TestSubjectServiceCreateDefaultsToCurrentSeason(t *testing.T) {
	repo := &subjectRepoStub{}
	svc := NewSubjectService(repo, seasonStub{current: 4}, nil, nil, nil)

	subject, err := svc.Create(context.Background(), superAdmin(), CreateSubjectRequest{Title: "Algebra", Code: "ALG-1"})
	require.NoError(t, err)
	assert.Equal(t, 4, subject.Season)
	assert.Equal(t, models.SubjectStatusInit, subject.Status)
}

func TestSubjectServiceCreateForeignSeasonDenied(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{}, seasonStub{current: 4}, nil, nil, nil)

	_, err := svc.Create(context.Background(), regularAdmin(3), CreateSubjectRequest{Title: "Algebra", Code: "ALG-1", Season: intPtr(4)})
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
}

func TestSubjectServiceUpdateRejectsUnknownStatus(t *testing.T) {
	repo := &subjectRepoStub{subjects: []models.Subject{{ID: "sub1", Title: "Algebra", Season: 3}}}
	svc := NewSubjectService(repo, seasonStub{current: 4}, nil, nil, nil)

	_, err := svc.Update(context.Background(), superAdmin(), "sub1", &models.Subject{Status: "WAT"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceDeleteRequiresPrivilege(t *testing.T) {
	repo := &subjectRepoStub{subjects: []models.Subject{{ID: "sub1", Season: 3}}}
	svc := NewSubjectService(repo, seasonStub{current: 4}, nil, nil, nil)

	err := svc.Delete(context.Background(), regularAdmin(3), "sub1")
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))

	require.NoError(t, svc.Delete(context.Background(), superAdmin(), "sub1"))
}
