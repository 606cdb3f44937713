package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vuledev/sams-api/internal/service"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
	"github.com/vuledev/sams-api/pkg/response"
	"github.com/vuledev/sams-api/pkg/storage"
)

// ExportHandler exposes roster and absence exports plus the signed
// download endpoint.
type ExportHandler struct {
	service *service.ExportService
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewExportHandler constructs an export handler.
func NewExportHandler(svc *service.ExportService, store *storage.LocalStorage, signer *storage.SignedURLSigner) *ExportHandler {
	return &ExportHandler{service: svc, store: store, signer: signer}
}

func exportFormatQuery(c *gin.Context) (service.ExportFormat, error) {
	raw := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv")))
	switch format := service.ExportFormat(raw); format {
	case service.ExportFormatCSV, service.ExportFormatPDF:
		return format, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// Roster godoc
// @Summary Export the student roster for a season
// @Tags Exports
// @Produce json
// @Param season query int false "Season number; 0 requests all seasons"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/roster [get]
func (h *ExportHandler) Roster(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	season, err := seasonQuery(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "season must be an integer"))
		return
	}
	format, err := exportFormatQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Roster(c.Request.Context(), actor, season, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Absences godoc
// @Summary Export absences filed for a subject
// @Tags Exports
// @Produce json
// @Param id path string true "Subject ID"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/absences/{id} [get]
func (h *ExportHandler) Absences(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format, err := exportFormatQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Absences(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a previously generated export
// @Tags Exports
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link"))
		return
	}
	file, err := h.store.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export no longer available"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export"))
		return
	}
	filename := filepath.Base(relPath)
	contentType := "text/csv"
	if strings.HasSuffix(filename, ".pdf") {
		contentType = "application/pdf"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, headers)
}
