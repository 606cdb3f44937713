package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	AddSeason(ctx context.Context, membership *models.StudentSeason) error
	RemoveSeason(ctx context.Context, studentID string, season int) error
	Delete(ctx context.Context, id string) error
}

// CreateStudentRequest is the payload for registering a student.
type CreateStudentRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone"`
	Season   int    `json:"season" validate:"gt=0"`
	Group    string `json:"group" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// UpdateStudentRequest is the payload for editing a student.
type UpdateStudentRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Active   *bool  `json:"active"`
}

// StudentService manages student accounts and their season memberships.
type StudentService struct {
	repo      studentRepository
	seasons   seasonProvider
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, seasons seasonProvider, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, seasons: seasons, audit: audit, validator: validate, logger: logger}
}

// List returns students within the actor's season scope. The requested
// season goes through the same gate as document listings; an all-seasons
// request is privileged-only.
func (s *StudentService) List(ctx context.Context, actor models.Actor, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	current, err := s.seasons.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	eff, err := ResolveSeasonNumber(actor, filter.Season, current)
	if err != nil {
		return nil, nil, err
	}
	filter.Season = eff

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginate(total, filter.Page, filter.PageSize), nil
}

// Get fetches one student with season memberships.
func (s *StudentService) Get(ctx context.Context, actor models.Actor, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if !actor.IsSuperAdmin() && !student.InSeason(actor.LatestSeason) && actor.ID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is outside your season")
	}
	return student, nil
}

// Create registers a student and enrolls them into their first season.
func (s *StudentService) Create(ctx context.Context, actor models.Actor, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if !actor.IsSuperAdmin() && req.Season > actor.LatestSeason {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot enroll into a future season")
	}
	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	student := &models.Student{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Phone:        req.Phone,
		Active:       true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	membership := &models.StudentSeason{StudentID: student.ID, Season: req.Season, Group: req.Group, Code: req.Code}
	if err := s.repo.AddSeason(ctx, membership); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	s.recordAudit(actor, models.AuditActionCreate, student.ID, req.Season)
	return &models.StudentDetail{Student: *student, Seasons: []models.StudentSeason{*membership}}, nil
}

// Update edits a student's profile.
func (s *StudentService) Update(ctx context.Context, actor models.Actor, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	if req.Email != "" {
		detail.Email = req.Email
	}
	if req.FullName != "" {
		detail.FullName = req.FullName
	}
	if req.Phone != "" {
		detail.Phone = req.Phone
	}
	if req.Active != nil {
		detail.Active = *req.Active
	}
	if err := s.repo.Update(ctx, &detail.Student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.recordAudit(actor, models.AuditActionUpdate, id, detail.LatestSeason())
	return detail, nil
}

// Enroll adds a season membership to an existing student.
func (s *StudentService) Enroll(ctx context.Context, actor models.Actor, id string, membership models.StudentSeason) error {
	if membership.Season <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "season must be positive")
	}
	if !actor.IsSuperAdmin() && membership.Season > actor.LatestSeason {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot enroll into a future season")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	membership.StudentID = id
	if err := s.repo.AddSeason(ctx, &membership); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	s.recordAudit(actor, models.AuditActionUpdate, id, membership.Season)
	return nil
}

// Delete removes a student. Restricted to privileged actors.
func (s *StudentService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts delete students")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.recordAudit(actor, models.AuditActionDelete, id, 0)
	return nil
}

func (s *StudentService) recordAudit(actor models.Actor, action, studentID string, season int) {
	if s.audit == nil {
		return
	}
	s.audit.Record(actor, models.AuditLog{
		Action:     action,
		Resource:   "students",
		ResourceID: &studentID,
		Season:     season,
	}, nil)
}
