package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuledev/sams-api/internal/middleware"
	"github.com/vuledev/sams-api/internal/models"
)

func listContext(t *testing.T, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)
	c.Request = req
	c.Set(middleware.ContextActorKey, models.Actor{
		ID:     "adm-1",
		Roles:  []models.Role{models.RoleBHV},
		Active: true,
	})
	return c, w
}

func TestDocumentListRejectsUnknownSortField(t *testing.T) {
	c, w := listContext(t, "/documents?sort=file_id")

	NewDocumentHandler(nil).List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown sort field")
}

func TestStudentListRejectsUnknownSortField(t *testing.T) {
	c, w := listContext(t, "/students?sort=group")

	NewStudentHandler(nil).List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubjectListRejectsUnknownSortField(t *testing.T) {
	c, w := listContext(t, "/subjects?sort=lecturer")

	NewSubjectHandler(nil).List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserListRejectsUnknownSortField(t *testing.T) {
	c, w := listContext(t, "/users?sort=password_hash")

	NewUserHandler(nil).List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSortQueryPassesAllowedFields(t *testing.T) {
	c, _ := listContext(t, "/documents?sort=season")
	sortBy, err := sortQuery(c, "name", "season", "created_at")
	require.NoError(t, err)
	assert.Equal(t, "season", sortBy)

	c, _ = listContext(t, "/documents")
	sortBy, err = sortQuery(c, "name", "season", "created_at")
	require.NoError(t, err)
	assert.Empty(t, sortBy)
}
