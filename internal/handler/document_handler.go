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

// DocumentHandler exposes document listing and management endpoints.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler constructs a document handler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// List godoc
// @Summary List visible documents
// @Tags Documents
// @Produce json
// @Param season query int false "Season number; 0 requests all seasons"
// @Param type query string false "Document type"
// @Param search query string false "Name search"
// @Param label query string false "Comma separated labels"
// @Param roles query string false "Comma separated role tags"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.DocumentFilter
	season, err := seasonQuery(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "season must be an integer"))
		return
	}
	filter.Season = season
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		docType := models.DocumentType(strings.ToUpper(raw))
		filter.Type = &docType
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Labels = csvQuery(c, "label")
	filter.Roles = csvQuery(c, "roles")
	filter.Page, filter.PageSize = pageQuery(c)
	sortBy, err := sortQuery(c, "name", "season", "type", "created_at", "updated_at")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.SortBy = sortBy
	filter.SortOrder = c.Query("order")

	page, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Items, &page.Pagination)
}

// Get godoc
// @Summary Get document by id
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

type createDocumentRequest struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Role        string   `json:"role"`
	Season      *int     `json:"season"`
	Description string   `json:"description"`
	Labels      []string `json:"label"`
	FileID      string   `json:"file_id"`
	MimeType    string   `json:"mime_type"`
}

// Create godoc
// @Summary Create document
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body createDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	doc := &models.Document{
		Name:        req.Name,
		Type:        models.DocumentType(strings.ToUpper(req.Type)),
		Role:        req.Role,
		Description: req.Description,
		Labels:      req.Labels,
		FileID:      req.FileID,
		MimeType:    req.MimeType,
	}
	created, err := h.service.Create(c.Request.Context(), actor, doc, req.Season)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body createDocumentRequest true "Document payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	update := &models.Document{
		Name:        req.Name,
		Type:        models.DocumentType(strings.ToUpper(req.Type)),
		Role:        req.Role,
		Description: req.Description,
		Labels:      req.Labels,
		MimeType:    req.MimeType,
	}
	doc, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Security BearerAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
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
