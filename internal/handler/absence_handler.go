package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/service"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
	"github.com/vuledev/sams-api/pkg/response"
)

// AbsenceHandler exposes the absence window and absence entry endpoints.
type AbsenceHandler struct {
	service  *service.AbsenceService
	students *service.StudentService
}

// NewAbsenceHandler constructs an absence handler.
func NewAbsenceHandler(svc *service.AbsenceService, students *service.StudentService) *AbsenceHandler {
	return &AbsenceHandler{service: svc, students: students}
}

// Form godoc
// @Summary Get the absence submission window
// @Tags Absences
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /absences/form [get]
func (h *AbsenceHandler) Form(c *gin.Context) {
	form, err := h.service.Form(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

type setFormRequest struct {
	Status    string  `json:"status" binding:"required"`
	SubjectID *string `json:"subject_id"`
}

// SetForm godoc
// @Summary Open or close the absence submission window
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body setFormRequest true "Window payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /absences/form [put]
func (h *AbsenceHandler) SetForm(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req setFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status := models.FormStatus(strings.ToUpper(req.Status))
	form, err := h.service.SetForm(c.Request.Context(), actor, status, req.SubjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// Submit godoc
// @Summary File an absence for the open subject
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body service.SubmitAbsenceRequest true "Absence payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /student/absences [post]
func (h *AbsenceHandler) Submit(c *gin.Context) {
	student, ok := studentFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	absence, err := h.service.Submit(c.Request.Context(), student, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, absence)
}

// SubmitFor godoc
// @Summary File an absence on behalf of a student
// @Tags Absences
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.SubmitAbsenceRequest true "Absence payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/absences [post]
func (h *AbsenceHandler) SubmitFor(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	absence, err := h.service.Submit(c.Request.Context(), student, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, absence)
}

// Mine godoc
// @Summary Get the signed-in student's absence for the open subject
// @Tags Absences
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /student/absences [get]
func (h *AbsenceHandler) Mine(c *gin.Context) {
	student, ok := studentFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	absence, err := h.service.Mine(c.Request.Context(), student)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absence, nil)
}

// History godoc
// @Summary List the signed-in student's past absences
// @Tags Absences
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /student/absences/history [get]
func (h *AbsenceHandler) History(c *gin.Context) {
	student, ok := studentFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	absences, err := h.service.History(c.Request.Context(), student)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absences, nil)
}

// ListBySubject godoc
// @Summary List absences filed for a subject
// @Tags Absences
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id}/absences [get]
func (h *AbsenceHandler) ListBySubject(c *gin.Context) {
	page, size := pageQuery(c)
	absences, pagination, err := h.service.ListBySubject(c.Request.Context(), c.Param("id"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absences, pagination)
}

// Delete godoc
// @Summary Delete an absence entry
// @Tags Absences
// @Param id path string true "Absence ID"
// @Success 204
// @Security BearerAuth
// @Router /absences/{id} [delete]
func (h *AbsenceHandler) Delete(c *gin.Context) {
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
