package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/service"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
	"github.com/vuledev/sams-api/pkg/response"
)

// SeasonHandler exposes season listing and administration endpoints.
type SeasonHandler struct {
	service *service.SeasonService
}

// NewSeasonHandler constructs a season handler.
func NewSeasonHandler(svc *service.SeasonService) *SeasonHandler {
	return &SeasonHandler{service: svc}
}

// List godoc
// @Summary List seasons
// @Tags Seasons
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /seasons [get]
func (h *SeasonHandler) List(c *gin.Context) {
	seasons, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seasons, nil)
}

// Current godoc
// @Summary Get the current season number
// @Tags Seasons
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /seasons/current [get]
func (h *SeasonHandler) Current(c *gin.Context) {
	current, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"season": current}, nil)
}

type createSeasonRequest struct {
	Number       int    `json:"season" binding:"required"`
	Title        string `json:"title"`
	AcademicYear string `json:"academic_year"`
	IsCurrent    bool   `json:"is_current"`
}

// Create godoc
// @Summary Create season
// @Tags Seasons
// @Accept json
// @Produce json
// @Param payload body createSeasonRequest true "Season payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /seasons [post]
func (h *SeasonHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req createSeasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	season := &models.Season{
		Number:       req.Number,
		Title:        req.Title,
		AcademicYear: req.AcademicYear,
		IsCurrent:    req.IsCurrent,
	}
	if err := h.service.Create(c.Request.Context(), actor, season); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, season)
}

// SetCurrent godoc
// @Summary Mark a season as current
// @Tags Seasons
// @Param number path int true "Season number"
// @Success 204
// @Security BearerAuth
// @Router /seasons/{number}/current [put]
func (h *SeasonHandler) SetCurrent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "season number must be a positive integer"))
		return
	}
	if err := h.service.SetCurrent(c.Request.Context(), actor, number); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
