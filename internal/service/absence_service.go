package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type absenceRepository interface {
	FindForm(ctx context.Context, formType models.FormType) (*models.ManageForm, error)
	UpsertForm(ctx context.Context, form *models.ManageForm) error
	ListBySubject(ctx context.Context, subjectID string, page, size int) ([]models.Absence, int, error)
	ListByStudent(ctx context.Context, studentID string, subjectIDs []string) ([]models.Absence, error)
	FindByStudentAndSubject(ctx context.Context, studentID, subjectID string) (*models.Absence, error)
	FindByID(ctx context.Context, id string) (*models.Absence, error)
	Create(ctx context.Context, absence *models.Absence) error
	Update(ctx context.Context, absence *models.Absence) error
	Delete(ctx context.Context, id string) error
}

type absenceSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// SubmitAbsenceRequest is the payload a student files while the form is
// open.
type SubmitAbsenceRequest struct {
	Reason string `json:"reason" validate:"required"`
	Note   string `json:"note"`
}

// AbsenceService manages the absence submission window and its entries.
type AbsenceService struct {
	repo      absenceRepository
	subjects  absenceSubjectRepository
	seasons   seasonProvider
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAbsenceService constructs an AbsenceService.
func NewAbsenceService(repo absenceRepository, subjects absenceSubjectRepository, seasons seasonProvider, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *AbsenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AbsenceService{repo: repo, subjects: subjects, seasons: seasons, audit: audit, validator: validate, logger: logger}
}

// Form returns the absence form state.
func (s *AbsenceService) Form(ctx context.Context) (*models.ManageForm, error) {
	form, err := s.repo.FindForm(ctx, models.FormTypeSubjectAbsent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.ManageForm{Type: models.FormTypeSubjectAbsent, Status: models.FormStatusInactive}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch form")
	}
	return form, nil
}

// SetForm updates the form status and target subject. Activating the form
// requires a subject in the current season.
func (s *AbsenceService) SetForm(ctx context.Context, actor models.Actor, status models.FormStatus, subjectID *string) (*models.ManageForm, error) {
	switch status {
	case models.FormStatusInactive, models.FormStatusActive, models.FormStatusClosed:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown form status")
	}

	form, err := s.Form(ctx)
	if err != nil {
		return nil, err
	}
	if subjectID != nil {
		form.SubjectID = subjectID
	}

	if status == models.FormStatusActive {
		if form.SubjectID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "an active form needs a target subject")
		}
		subject, err := s.subjects.FindByID(ctx, *form.SubjectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subject")
		}
		current, err := s.seasons.Current(ctx)
		if err != nil {
			return nil, err
		}
		if subject.Season != current {
			return nil, appErrors.Clone(appErrors.ErrValidation, "the form can only target a current-season subject")
		}
	}

	form.Status = status
	if err := s.repo.UpsertForm(ctx, form); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update form")
	}
	if s.audit != nil {
		s.audit.Record(actor, models.AuditLog{
			Action:     models.AuditActionUpdate,
			Resource:   "manage_forms",
			ResourceID: &form.ID,
		}, form)
	}
	return form, nil
}

// Submit files or revises the student's absence for the form's subject.
// Submissions are accepted only while the form is active.
func (s *AbsenceService) Submit(ctx context.Context, student *models.StudentDetail, req SubmitAbsenceRequest) (*models.Absence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}

	form, err := s.Form(ctx)
	if err != nil {
		return nil, err
	}
	if form.Status != models.FormStatusActive || form.SubjectID == nil {
		return nil, appErrors.Clone(appErrors.ErrFormClosed, "the absence form is not accepting submissions")
	}

	subject, err := s.subjects.FindByID(ctx, *form.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subject")
	}
	if !student.InSeason(subject.Season) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subject is outside your seasons")
	}

	existing, err := s.repo.FindByStudentAndSubject(ctx, student.ID, subject.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing absence")
	}
	if existing != nil {
		existing.Reason = req.Reason
		existing.Note = req.Note
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update absence")
		}
		return existing, nil
	}

	absence := &models.Absence{
		StudentID: student.ID,
		SubjectID: subject.ID,
		Reason:    req.Reason,
		Note:      req.Note,
	}
	if err := s.repo.Create(ctx, absence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create absence")
	}
	return absence, nil
}

// Mine returns the student's own submission for the form's subject, if any.
func (s *AbsenceService) Mine(ctx context.Context, student *models.StudentDetail) (*models.Absence, error) {
	form, err := s.Form(ctx)
	if err != nil {
		return nil, err
	}
	if form.SubjectID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no absence form configured")
	}
	absence, err := s.repo.FindByStudentAndSubject(ctx, student.ID, *form.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no submission yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch absence")
	}
	return absence, nil
}

// History returns every absence the student has filed, most recent first.
func (s *AbsenceService) History(ctx context.Context, student *models.StudentDetail) ([]models.Absence, error) {
	absences, err := s.repo.ListByStudent(ctx, student.ID, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absences")
	}
	return absences, nil
}

// ListBySubject returns absences filed against a subject.
func (s *AbsenceService) ListBySubject(ctx context.Context, subjectID string, page, size int) ([]models.Absence, *models.Pagination, error) {
	absences, total, err := s.repo.ListBySubject(ctx, subjectID, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absences")
	}
	return absences, paginate(total, page, size), nil
}

// Delete removes an absence on behalf of an admin, with an audit entry.
func (s *AbsenceService) Delete(ctx context.Context, actor models.Actor, id string) error {
	absence, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "absence not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch absence")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete absence")
	}
	if s.audit != nil {
		s.audit.Record(actor, models.AuditLog{
			Action:     models.AuditActionDelete,
			Resource:   "absences",
			ResourceID: &absence.ID,
		}, absence)
	}
	return nil
}
