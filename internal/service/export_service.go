package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
	"github.com/vuledev/sams-api/pkg/export"
	"github.com/vuledev/sams-api/pkg/storage"
)

type exportStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

type exportAbsenceRepository interface {
	ListBySubject(ctx context.Context, subjectID string, page, size int) ([]models.Absence, int, error)
}

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult points at a rendered export file with a signed download.
type ExportResult struct {
	FileID    string    `json:"file_id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Rows      int       `json:"rows"`
}

// ExportService renders season rosters and absence lists to downloadable
// files.
type ExportService struct {
	students exportStudentRepository
	absences exportAbsenceRepository
	seasons  seasonProvider
	audit    auditRecorder
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(students exportStudentRepository, absences exportAbsenceRepository, seasons seasonProvider, audit auditRecorder, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		students: students,
		absences: absences,
		seasons:  seasons,
		audit:    audit,
		store:    store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// Roster exports the student roster for one season, subject to the same
// season gate as listings.
func (s *ExportService) Roster(ctx context.Context, actor models.Actor, season *int, format ExportFormat) (*ExportResult, error) {
	current, err := s.seasons.Current(ctx)
	if err != nil {
		return nil, err
	}
	eff, err := ResolveSeasonNumber(actor, season, current)
	if err != nil {
		return nil, err
	}

	// Pull the full roster page by page; exports are not paginated.
	filter := models.StudentFilter{Season: eff, Page: 1, PageSize: 100}
	rows := []map[string]string{}
	for {
		students, total, err := s.students.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect roster")
		}
		for _, st := range students {
			group, code := "", ""
			for _, ss := range st.Seasons {
				if eff == nil || ss.Season == *eff {
					group, code = ss.Group, ss.Code
				}
			}
			rows = append(rows, map[string]string{
				"email":     st.Email,
				"full_name": st.FullName,
				"group":     group,
				"code":      code,
				"active":    strconv.FormatBool(st.Active),
			})
		}
		if len(rows) >= total || len(students) == 0 {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"email", "full_name", "group", "code", "active"},
		Rows:    rows,
	}
	label := "all-seasons"
	if eff != nil {
		label = fmt.Sprintf("season-%d", *eff)
	}
	result, err := s.render(dataset, fmt.Sprintf("roster-%s", label), format)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		seasonValue := 0
		if eff != nil {
			seasonValue = *eff
		}
		s.audit.Record(actor, models.AuditLog{
			Action:     models.AuditActionExport,
			Resource:   "students",
			ResourceID: &result.FileID,
			Season:     seasonValue,
		}, map[string]interface{}{"rows": result.Rows, "format": format})
	}
	return result, nil
}

// Absences exports every absence filed against a subject.
func (s *ExportService) Absences(ctx context.Context, actor models.Actor, subjectID string, format ExportFormat) (*ExportResult, error) {
	rows := []map[string]string{}
	page := 1
	for {
		absences, total, err := s.absences.ListBySubject(ctx, subjectID, page, 100)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect absences")
		}
		for _, a := range absences {
			rows = append(rows, map[string]string{
				"student_id": a.StudentID,
				"reason":     a.Reason,
				"note":       a.Note,
				"filed_at":   a.CreatedAt.Format(time.RFC3339),
			})
		}
		if len(rows) >= total || len(absences) == 0 {
			break
		}
		page++
	}

	dataset := export.Dataset{
		Headers: []string{"student_id", "reason", "note", "filed_at"},
		Rows:    rows,
	}
	result, err := s.render(dataset, fmt.Sprintf("absences-%s", subjectID), format)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.Record(actor, models.AuditLog{
			Action:     models.AuditActionExport,
			Resource:   "absences",
			ResourceID: &result.FileID,
		}, map[string]interface{}{"subject_id": subjectID, "rows": result.Rows, "format": format})
	}
	return result, nil
}

// Cleanup removes rendered files older than the TTL.
func (s *ExportService) Cleanup(ttl time.Duration) {
	removed, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("export cleanup", zap.Int("removed", len(removed)))
	}
}

func (s *ExportService) render(dataset export.Dataset, name string, format ExportFormat) (*ExportResult, error) {
	var (
		payload []byte
		err     error
		ext     string
	)
	switch format {
	case ExportFormatCSV, "":
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, name)
		ext = "pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	fileID := uuid.NewString()
	filename := fmt.Sprintf("%s-%s.%s", name, fileID[:8], ext)
	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(fileID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &ExportResult{
		FileID:    fileID,
		Filename:  filename,
		URL:       fmt.Sprintf("/api/v1/exports/download/%s", token),
		ExpiresAt: expiresAt,
		Rows:      len(dataset.Rows),
	}, nil
}
