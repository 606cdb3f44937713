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

// AuditHandler exposes the audit trail to privileged actors.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit entries
// @Tags Audit
// @Produce json
// @Param action query string false "Action filter"
// @Param resource query string false "Resource filter"
// @Param author_id query string false "Author filter"
// @Param season query int false "Season filter"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var filter models.AuditFilter
	season, err := seasonQuery(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "season must be an integer"))
		return
	}
	filter.Season = season
	filter.Action = strings.ToUpper(strings.TrimSpace(c.Query("action")))
	filter.Resource = strings.TrimSpace(c.Query("resource"))
	filter.AuthorID = strings.TrimSpace(c.Query("author_id"))
	filter.Page, filter.PageSize = pageQuery(c)
	filter.SortOrder = c.Query("order")

	entries, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}
