package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/query"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, scope query.Node, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// CreateSubjectRequest is the payload for registering a subject.
type CreateSubjectRequest struct {
	Title       string `json:"title" validate:"required"`
	Code        string `json:"code" validate:"required"`
	Season      *int   `json:"season"`
	Subdivision string `json:"subdivision"`
	Lecturer    string `json:"lecturer"`
	ZoomLink    string `json:"zoom_link"`
	ZoomID      string `json:"zoom_id"`
	ZoomPwd     string `json:"zoom_pwd"`
}

// SubjectService manages subjects under the season gate.
type SubjectService struct {
	repo      subjectRepository
	seasons   seasonProvider
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, seasons seasonProvider, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubjectService{repo: repo, seasons: seasons, audit: audit, validator: validate, logger: logger}
}

// List returns subjects within the actor's season scope.
func (s *SubjectService) List(ctx context.Context, actor models.Actor, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	current, err := s.seasons.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	scope, err := ResolveSeasonScope(actor, filter.Season, current)
	if err != nil {
		return nil, nil, err
	}
	subjects, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, paginate(total, filter.Page, filter.PageSize), nil
}

// ListForStudent returns subjects in one of the student's enrolled seasons.
// The default is their most recent season; any other request must name a
// season they belong to.
func (s *SubjectService) ListForStudent(ctx context.Context, student *models.StudentDetail, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	target := student.LatestSeason()
	if filter.Season != nil {
		if !student.InSeason(*filter.Season) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("no access to season %d", *filter.Season))
		}
		target = *filter.Season
	}
	if target == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "no season membership")
	}
	scope := query.Node(query.Equals{Field: "season", Value: target})
	subjects, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, paginate(total, filter.Page, filter.PageSize), nil
}

// Get fetches one subject.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subject")
	}
	return subject, nil
}

// Create registers a subject in the current season unless an explicit,
// permitted season is supplied.
func (s *SubjectService) Create(ctx context.Context, actor models.Actor, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	current, err := s.seasons.Current(ctx)
	if err != nil {
		return nil, err
	}
	target := current
	if req.Season != nil {
		if *req.Season == AllSeasons {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subjects belong to exactly one season")
		}
		if !actor.IsSuperAdmin() && *req.Season > actor.LatestSeason {
			return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("no access to season %d", *req.Season))
		}
		target = *req.Season
	}

	subject := &models.Subject{
		Title:       req.Title,
		Code:        req.Code,
		Season:      target,
		Subdivision: req.Subdivision,
		Status:      models.SubjectStatusInit,
		Lecturer:    req.Lecturer,
		ZoomLink:    req.ZoomLink,
		ZoomID:      req.ZoomID,
		ZoomPwd:     req.ZoomPwd,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	s.recordAudit(actor, models.AuditActionCreate, subject)
	return subject, nil
}

// Update rewrites a subject's mutable fields. The season is fixed at
// creation.
func (s *SubjectService) Update(ctx context.Context, actor models.Actor, id string, update *models.Subject) (*models.Subject, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subject")
	}
	if !actor.IsSuperAdmin() && existing.Season > actor.LatestSeason {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("no access to season %d", existing.Season))
	}

	if update.Title != "" {
		existing.Title = update.Title
	}
	if update.Code != "" {
		existing.Code = update.Code
	}
	if update.Subdivision != "" {
		existing.Subdivision = update.Subdivision
	}
	if update.Status != "" {
		switch update.Status {
		case models.SubjectStatusInit, models.SubjectStatusSentStudy, models.SubjectStatusCompleted:
			existing.Status = update.Status
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject status %q", update.Status))
		}
	}
	if update.StartAt != nil {
		existing.StartAt = update.StartAt
	}
	if update.Lecturer != "" {
		existing.Lecturer = update.Lecturer
	}
	if update.ZoomLink != "" {
		existing.ZoomLink = update.ZoomLink
	}
	if update.ZoomID != "" {
		existing.ZoomID = update.ZoomID
	}
	if update.ZoomPwd != "" {
		existing.ZoomPwd = update.ZoomPwd
	}
	if update.Attachments != nil {
		existing.Attachments = update.Attachments
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	s.recordAudit(actor, models.AuditActionUpdate, existing)
	return existing, nil
}

// Delete removes a subject. Restricted to privileged actors.
func (s *SubjectService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts delete subjects")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subject")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	s.recordAudit(actor, models.AuditActionDelete, existing)
	return nil
}

func (s *SubjectService) recordAudit(actor models.Actor, action string, subject *models.Subject) {
	if s.audit == nil {
		return
	}
	s.audit.Record(actor, models.AuditLog{
		Action:     action,
		Resource:   "subjects",
		ResourceID: &subject.ID,
		Season:     subject.Season,
	}, map[string]interface{}{"title": subject.Title, "code": subject.Code})
}
