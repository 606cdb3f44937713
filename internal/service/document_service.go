package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/query"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type documentRepository interface {
	List(ctx context.Context, scope query.Node, page, size int, sortBy, sortOrder string) ([]models.Document, int, error)
	FindByID(ctx context.Context, id string) (*models.Document, error)
	FindVisibleByID(ctx context.Context, id string, scope query.Node) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
}

type documentAuthorRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type seasonProvider interface {
	Current(ctx context.Context) (int, error)
}

type auditRecorder interface {
	Record(actor models.Actor, entry models.AuditLog, payload interface{})
}

// DocumentService lists and manages documents under the season/role
// visibility rules.
type DocumentService struct {
	repo    documentRepository
	authors documentAuthorRepository
	seasons seasonProvider
	audit   auditRecorder
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(repo documentRepository, authors documentAuthorRepository, seasons seasonProvider, audit auditRecorder, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, authors: authors, seasons: seasons, audit: audit, cache: cache, metrics: metrics, logger: logger}
}

// DocumentPage is one page of enriched documents.
type DocumentPage struct {
	Items      []models.DocumentView `json:"items"`
	Pagination models.Pagination     `json:"pagination"`
}

// List returns the documents visible to the actor under the requested
// filters. The scope predicate is applied before counting and pagination,
// and each document is enriched with its author.
func (s *DocumentService) List(ctx context.Context, actor models.Actor, filter models.DocumentFilter) (*DocumentPage, error) {
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document type %q", *filter.Type))
	}

	current, err := s.seasons.Current(ctx)
	if err != nil {
		return nil, err
	}

	scope, err := ResolveDocumentScope(actor, filter.Season, filter.Type, current)
	if err != nil {
		if s.metrics != nil && appErrors.IsForbidden(err) {
			s.metrics.RecordScopeDenial("documents")
		}
		return nil, err
	}
	full := ComposeDocumentFilter(scope, filter.Search, filter.Labels, filter.Roles)

	key := s.cacheKey(actor, filter)
	var page DocumentPage
	if s.cache.Get(ctx, key, &page) {
		return &page, nil
	}

	docs, total, err := s.repo.List(ctx, full, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}

	views, err := s.enrich(ctx, docs)
	if err != nil {
		return nil, err
	}

	page = DocumentPage{Items: views, Pagination: *paginate(total, filter.Page, filter.PageSize)}
	s.cache.Set(ctx, key, &page)
	return &page, nil
}

// Get fetches one document within the actor's default visibility scope, so
// out-of-scope records are indistinguishable from missing ones.
func (s *DocumentService) Get(ctx context.Context, actor models.Actor, id string) (*models.DocumentView, error) {
	scope, err := s.defaultScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.FindVisibleByID(ctx, id, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch document")
	}
	views, err := s.enrich(ctx, []models.Document{*doc})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Create stores a new document attributed to the actor. The season is
// assigned from the current season unless an explicit, permitted season is
// supplied.
func (s *DocumentService) Create(ctx context.Context, actor models.Actor, doc *models.Document, season *int) (*models.Document, error) {
	if doc.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document name is required")
	}
	if !doc.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document type %q", doc.Type))
	}
	if doc.Type == models.DocumentTypeInternal && doc.Role == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "internal documents require a role")
	}

	current, err := s.seasons.Current(ctx)
	if err != nil {
		return nil, err
	}
	target := current
	if season != nil {
		if *season == AllSeasons {
			return nil, appErrors.Clone(appErrors.ErrValidation, "documents belong to exactly one season")
		}
		if !actor.IsSuperAdmin() && *season > actor.LatestSeason {
			return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("no access to season %d", *season))
		}
		target = *season
	}
	doc.Season = target
	doc.AuthorID = actor.ID

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.invalidateListings(ctx)
	s.recordAudit(actor, models.AuditActionCreate, doc)
	return doc, nil
}

// Update rewrites a document's mutable fields. Only the author or a
// privileged actor may update.
func (s *DocumentService) Update(ctx context.Context, actor models.Actor, id string, update *models.Document) (*models.Document, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch document")
	}
	if existing.AuthorID != actor.ID && !actor.IsSuperAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author or a privileged account may update a document")
	}
	if update.Name != "" {
		existing.Name = update.Name
	}
	if update.Type != "" {
		if !update.Type.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document type %q", update.Type))
		}
		existing.Type = update.Type
	}
	if existing.Type == models.DocumentTypeInternal && update.Role != "" {
		existing.Role = update.Role
	}
	if update.Description != "" {
		existing.Description = update.Description
	}
	if update.Labels != nil {
		existing.Labels = update.Labels
	}
	if update.MimeType != "" {
		existing.MimeType = update.MimeType
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	s.invalidateListings(ctx)
	s.recordAudit(actor, models.AuditActionUpdate, existing)
	return existing, nil
}

// Delete removes a document. Only the author or a privileged actor may
// delete.
func (s *DocumentService) Delete(ctx context.Context, actor models.Actor, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch document")
	}
	if existing.AuthorID != actor.ID && !actor.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author or a privileged account may delete a document")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	s.invalidateListings(ctx)
	s.recordAudit(actor, models.AuditActionDelete, existing)
	return nil
}

// defaultScope builds the actor's visibility predicate with no explicit
// season or type. Privileged actors see everything.
func (s *DocumentService) defaultScope(ctx context.Context, actor models.Actor) (query.Node, error) {
	current, err := s.seasons.Current(ctx)
	if err != nil {
		return nil, err
	}
	if actor.IsSuperAdmin() {
		all := AllSeasons
		return ResolveDocumentScope(actor, &all, nil, current)
	}
	return ResolveDocumentScope(actor, nil, nil, current)
}

func (s *DocumentService) enrich(ctx context.Context, docs []models.Document) ([]models.DocumentView, error) {
	seen := map[string]struct{}{}
	ids := []string{}
	for _, d := range docs {
		if d.AuthorID == "" {
			continue
		}
		if _, ok := seen[d.AuthorID]; ok {
			continue
		}
		seen[d.AuthorID] = struct{}{}
		ids = append(ids, d.AuthorID)
	}

	authors := map[string]models.AuthorView{}
	if len(ids) > 0 {
		users, err := s.authors.FindByIDs(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve document authors")
		}
		for _, u := range users {
			authors[u.ID] = models.AuthorView{
				ID:           u.ID,
				Email:        u.Email,
				FullName:     u.FullName,
				Roles:        append([]models.Role{}, u.Roles...),
				LatestSeason: u.LatestSeason,
				Active:       u.Active,
				CreatedAt:    u.CreatedAt,
			}
		}
	}

	views := make([]models.DocumentView, len(docs))
	for i, d := range docs {
		views[i] = models.DocumentView{Document: d, Author: authors[d.AuthorID]}
	}
	return views, nil
}

// cacheKey derives a stable key from the actor's identity and the full
// filter, so no account ever sees another account's page.
func (s *DocumentService) cacheKey(actor models.Actor, filter models.DocumentFilter) string {
	raw, _ := json.Marshal(struct {
		Actor  models.Actor
		Filter models.DocumentFilter
	}{actor, filter})
	return fmt.Sprintf("documents:list:%x", sha256.Sum256(raw))
}

func (s *DocumentService) invalidateListings(ctx context.Context) {
	s.cache.Invalidate(ctx, "documents:list:*")
}

func (s *DocumentService) recordAudit(actor models.Actor, action string, doc *models.Document) {
	if s.audit == nil {
		return
	}
	s.audit.Record(actor, models.AuditLog{
		Action:     action,
		Resource:   "documents",
		ResourceID: &doc.ID,
		Season:     doc.Season,
	}, doc)
}
