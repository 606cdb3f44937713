package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/service"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
	"github.com/vuledev/sams-api/pkg/response"
)

// SubjectHandler exposes subject endpoints for admins and students.
type SubjectHandler struct {
	service *service.SubjectService
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(svc *service.SubjectService) *SubjectHandler {
	return &SubjectHandler{service: svc}
}

func subjectFilterQuery(c *gin.Context) (models.SubjectFilter, error) {
	var filter models.SubjectFilter
	season, err := seasonQuery(c)
	if err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "season must be an integer")
	}
	filter.Season = season
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Subdivision = strings.TrimSpace(c.Query("subdivision"))
	for _, raw := range csvQuery(c, "status") {
		filter.Statuses = append(filter.Statuses, models.SubjectStatus(strings.ToUpper(raw)))
	}
	filter.Page, filter.PageSize = pageQuery(c)
	sortBy, err := sortQuery(c, "title", "code", "start_at", "created_at")
	if err != nil {
		return filter, err
	}
	filter.SortBy = sortBy
	filter.SortOrder = c.Query("order")
	return filter, nil
}

// List godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Param season query int false "Season number; 0 requests all seasons"
// @Param status query string false "Comma separated statuses"
// @Param search query string false "Title or code search"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter, err := subjectFilterQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	subjects, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, pagination)
}

// ListMine godoc
// @Summary List subjects for the signed-in student
// @Tags Subjects
// @Produce json
// @Param season query int false "Season number"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /student/subjects [get]
func (h *SubjectHandler) ListMine(c *gin.Context) {
	student, ok := studentFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter, err := subjectFilterQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	subjects, pagination, err := h.service.ListForStudent(c.Request.Context(), student, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, pagination)
}

// Get godoc
// @Summary Get subject by id
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	subject, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Create godoc
// @Summary Create subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body service.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	subject, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

type updateSubjectRequest struct {
	Title       string     `json:"title"`
	Code        string     `json:"code"`
	Subdivision string     `json:"subdivision"`
	Status      string     `json:"status"`
	StartAt     *time.Time `json:"start_at"`
	Lecturer    string     `json:"lecturer"`
	ZoomLink    string     `json:"zoom_link"`
	ZoomID      string     `json:"zoom_id"`
	ZoomPwd     string     `json:"zoom_pwd"`
	Attachments []string   `json:"attachments"`
}

// Update godoc
// @Summary Update subject
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body updateSubjectRequest true "Subject payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id} [put]
func (h *SubjectHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req updateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	update := &models.Subject{
		Title:       req.Title,
		Code:        req.Code,
		Subdivision: req.Subdivision,
		Status:      models.SubjectStatus(strings.ToUpper(req.Status)),
		StartAt:     req.StartAt,
		Lecturer:    req.Lecturer,
		ZoomLink:    req.ZoomLink,
		ZoomID:      req.ZoomID,
		ZoomPwd:     req.ZoomPwd,
		Attachments: req.Attachments,
	}
	subject, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Delete godoc
// @Summary Delete subject
// @Tags Subjects
// @Param id path string true "Subject ID"
// @Success 204
// @Security BearerAuth
// @Router /subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
