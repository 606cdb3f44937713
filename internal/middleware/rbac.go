package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
	"github.com/vuledev/sams-api/pkg/response"
)

// RequireAdmin blocks requests whose principal is not an admin account.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextActorKey); !exists {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin account required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStudent blocks requests whose principal is not a student account.
func RequireStudent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextStudentKey); !exists {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "student account required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRoles passes admins carrying at least one of the given role tags.
// "SELF" additionally admits the account whose id matches the :id route
// parameter.
func RequireRoles(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorValue, exists := c.Get(ContextActorKey)
		if !exists {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin account required"))
			c.Abort()
			return
		}
		actor := actorValue.(models.Actor)

		for _, role := range allowed {
			if role == "SELF" {
				if targetID := c.Param("id"); targetID != "" && targetID == actor.ID {
					c.Next()
					return
				}
				continue
			}
			if actor.HasRole(role) {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequirePrivileged passes only accounts holding a privileged role.
func RequirePrivileged() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorValue, exists := c.Get(ContextActorKey)
		if !exists {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin account required"))
			c.Abort()
			return
		}
		if !actorValue.(models.Actor).IsSuperAdmin() {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
