package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vuledev/sams-api/internal/middleware"
	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}

func studentFromContext(c *gin.Context) (*models.StudentDetail, bool) {
	value, exists := c.Get(middleware.ContextStudentKey)
	if !exists {
		return nil, false
	}
	student, ok := value.(*models.StudentDetail)
	return student, ok
}

// seasonQuery reads the season query parameter. An absent or empty value
// yields nil; zero is passed through as the all-seasons request.
func seasonQuery(c *gin.Context) (*int, error) {
	raw := strings.TrimSpace(c.Query("season"))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// sortQuery reads the sort query parameter against a field allow-list. An
// absent value yields the listing's default order; anything outside the
// allow-list is a validation error.
func sortQuery(c *gin.Context, allowed ...string) (string, error) {
	raw := strings.TrimSpace(c.Query("sort"))
	if raw == "" {
		return "", nil
	}
	for _, field := range allowed {
		if raw == field {
			return raw, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown sort field %q", raw))
}

func pageQuery(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, size
}

// csvQuery splits a comma separated query value, dropping empty segments.
func csvQuery(c *gin.Context, key string) []string {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
