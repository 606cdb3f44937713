package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vuledev/sams-api/internal/models"
)

func roleRouter(allowed ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/:id", func(c *gin.Context) {
		c.Set(ContextActorKey, models.Actor{
			ID:     c.GetHeader("X-Actor-ID"),
			Roles:  []models.Role{models.Role(c.GetHeader("X-Actor-Role"))},
			Active: true,
		})
		RequireRoles(allowed...)(c)
		if !c.IsAborted() {
			c.Status(http.StatusNoContent)
		}
	})
	return router
}

func TestRequireRolesPassesRoleHolder(t *testing.T) {
	router := roleRouter(models.RoleSuperAdmin, models.RoleAdmin, "SELF")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/u2", nil)
	req.Header.Set("X-Actor-ID", "u1")
	req.Header.Set("X-Actor-Role", models.RoleAdmin)
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRequireRolesAdmitsSelf(t *testing.T) {
	router := roleRouter(models.RoleSuperAdmin, "SELF")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/u1", nil)
	req.Header.Set("X-Actor-ID", "u1")
	req.Header.Set("X-Actor-Role", models.RoleBHV)
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRequireRolesRejectsOutsider(t *testing.T) {
	router := roleRouter(models.RoleSuperAdmin, "SELF")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/u2", nil)
	req.Header.Set("X-Actor-ID", "u1")
	req.Header.Set("X-Actor-Role", models.RoleBHV)
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRequireRolesRejectsMissingActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/:id", RequireRoles(models.RoleSuperAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/u1", nil))

	require.Equal(t, http.StatusForbidden, recorder.Code)
}
