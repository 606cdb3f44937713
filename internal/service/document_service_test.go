package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/query"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type documentRepoStub struct {
	docs      []models.Document
	lastScope query.Node
	lastPage  int
	lastSize  int
	err       error
}

func (s *documentRepoStub) List(ctx context.Context, scope query.Node, page, size int, sortBy, sortOrder string) ([]models.Document, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	s.lastScope = scope
	s.lastPage = page
	s.lastSize = size
	return s.docs, len(s.docs) + 40, nil
}

func (s *documentRepoStub) FindByID(ctx context.Context, id string) (*models.Document, error) {
	for i := range s.docs {
		if s.docs[i].ID == id {
			return &s.docs[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *documentRepoStub) FindVisibleByID(ctx context.Context, id string, scope query.Node) (*models.Document, error) {
	s.lastScope = scope
	return s.FindByID(ctx, id)
}

func (s *documentRepoStub) Create(ctx context.Context, doc *models.Document) error {
	if s.err != nil {
		return s.err
	}
	doc.ID = "generated"
	s.docs = append(s.docs, *doc)
	return nil
}

func (s *documentRepoStub) Update(ctx context.Context, doc *models.Document) error { return s.err }
func (s *documentRepoStub) Delete(ctx context.Context, id string) error            { return s.err }

type authorRepoStub struct {
	users []models.User
	err   error
}

func (s *authorRepoStub) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.users, nil
}

type seasonStub struct {
	current int
	err     error
}

func (s seasonStub) Current(ctx context.Context) (int, error) {
	return s.current, s.err
}

type auditStub struct {
	entries []models.AuditLog
}

func (s *auditStub) Record(actor models.Actor, entry models.AuditLog, payload interface{}) {
	s.entries = append(s.entries, entry)
}

func newDocumentService(repo *documentRepoStub, authors *authorRepoStub, seasons seasonStub, audit *auditStub) *DocumentService {
	return NewDocumentService(repo, authors, seasons, audit, nil, nil, nil)
}

func TestDocumentServiceListEnrichesAuthors(t *testing.T) {
	repo := &documentRepoStub{docs: []models.Document{
		{ID: "d1", Name: "Handbook", Type: models.DocumentTypeCommon, Season: 3, AuthorID: "u1"},
		{ID: "d2", Name: "Plan", Type: models.DocumentTypeAnnual, Season: 2, AuthorID: "ghost"},
	}}
	authors := &authorRepoStub{users: []models.User{
		{ID: "u1", Email: "bhv@example.com", FullName: "B. Admin", Roles: pq.StringArray{models.RoleBHV}, LatestSeason: 3, Active: true},
	}}
	svc := newDocumentService(repo, authors, seasonStub{current: 4}, &auditStub{})

	page, err := svc.List(context.Background(), regularAdmin(3), models.DocumentFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	assert.Equal(t, "bhv@example.com", page.Items[0].Author.Email)
	assert.True(t, page.Items[0].Author.Active)
	// Unresolvable author leaves the zero view rather than failing the page.
	assert.Empty(t, page.Items[1].Author.ID)

	assert.Equal(t, 42, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)
}

func TestDocumentServiceListAppliesScopeBeforePagination(t *testing.T) {
	repo := &documentRepoStub{}
	svc := newDocumentService(repo, &authorRepoStub{}, seasonStub{current: 4}, &auditStub{})

	_, err := svc.List(context.Background(), regularAdmin(3), models.DocumentFilter{Page: 2, PageSize: 10})
	require.NoError(t, err)

	require.NotNil(t, repo.lastScope)
	sql, _ := query.ToSQL(repo.lastScope, 0)
	assert.Contains(t, sql, "season")
	assert.Equal(t, 2, repo.lastPage)
	assert.Equal(t, 10, repo.lastSize)
}

func TestDocumentServiceListDeniedSeason(t *testing.T) {
	svc := newDocumentService(&documentRepoStub{}, &authorRepoStub{}, seasonStub{current: 4}, &auditStub{})

	_, err := svc.List(context.Background(), regularAdmin(3), models.DocumentFilter{Season: intPtr(0)})
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
}

func TestDocumentServiceListRejectsUnknownType(t *testing.T) {
	svc := newDocumentService(&documentRepoStub{}, &authorRepoStub{}, seasonStub{current: 4}, &auditStub{})

	bad := models.DocumentType("MYSTERY")
	_, err := svc.List(context.Background(), superAdmin(), models.DocumentFilter{Type: &bad})
	require.Error(t, err)
	e := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, e.Code)
}

func TestDocumentServiceCreateAssignsCurrentSeason(t *testing.T) {
	repo := &documentRepoStub{}
	audit := &auditStub{}
	svc := newDocumentService(repo, &authorRepoStub{}, seasonStub{current: 4}, audit)

	actor := superAdmin()
	doc, err := svc.Create(context.Background(), actor, &models.Document{Name: "Rules", Type: models.DocumentTypeCommon}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, doc.Season)
	assert.Equal(t, actor.ID, doc.AuthorID)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionCreate, audit.entries[0].Action)
	assert.Equal(t, 4, audit.entries[0].Season)
}

func TestDocumentServiceCreateInternalRequiresRole(t *testing.T) {
	svc := newDocumentService(&documentRepoStub{}, &authorRepoStub{}, seasonStub{current: 4}, &auditStub{})

	_, err := svc.Create(context.Background(), superAdmin(), &models.Document{Name: "Memo", Type: models.DocumentTypeInternal}, nil)
	require.Error(t, err)
	e := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, e.Code)
}

func TestDocumentServiceCreateForeignSeasonDenied(t *testing.T) {
	svc := newDocumentService(&documentRepoStub{}, &authorRepoStub{}, seasonStub{current: 4}, &auditStub{})

	_, err := svc.Create(context.Background(), regularAdmin(3), &models.Document{Name: "Rules", Type: models.DocumentTypeCommon}, intPtr(5))
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))
}

func TestDocumentServiceDeleteRequiresOwnership(t *testing.T) {
	repo := &documentRepoStub{docs: []models.Document{
		{ID: "d1", Name: "Handbook", Type: models.DocumentTypeCommon, Season: 3, AuthorID: "someone-else"},
	}}
	svc := newDocumentService(repo, &authorRepoStub{}, seasonStub{current: 4}, &auditStub{})

	err := svc.Delete(context.Background(), regularAdmin(3), "d1")
	require.Error(t, err)
	assert.True(t, appErrors.IsForbidden(err))

	// A privileged actor may remove any document.
	err = svc.Delete(context.Background(), superAdmin(), "d1")
	require.NoError(t, err)
}

func TestDocumentServiceGetOutOfScopeIsNotFound(t *testing.T) {
	repo := &documentRepoStub{}
	svc := newDocumentService(repo, &authorRepoStub{}, seasonStub{current: 4}, &auditStub{})

	_, err := svc.Get(context.Background(), regularAdmin(3), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}
