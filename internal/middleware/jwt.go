package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vuledev/sams-api/internal/models"
	"github.com/vuledev/sams-api/internal/service"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
	"github.com/vuledev/sams-api/pkg/response"
)

// Context keys for the authenticated principal.
const (
	ContextClaimsKey  = "authClaims"
	ContextActorKey   = "authActor"
	ContextStudentKey = "authStudent"
)

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ParseToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// ActorLoader resolves the token's account into a fresh snapshot, so role
// and season changes take effect without waiting for token expiry. Admin
// tokens yield an Actor; student tokens a StudentDetail.
func ActorLoader(users *service.UserService, students *service.StudentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextClaimsKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		switch claims.Kind {
		case models.AccountKindAdmin:
			systemActor := models.Actor{ID: claims.AccountID, Roles: claims.Roles, Active: true}
			user, err := users.Get(c.Request.Context(), systemActor, claims.AccountID)
			if err != nil {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer available"))
				c.Abort()
				return
			}
			if !user.Active {
				response.Error(c, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive"))
				c.Abort()
				return
			}
			c.Set(ContextActorKey, models.ActorFromUser(user))
		case models.AccountKindStudent:
			student, err := students.Get(c.Request.Context(), models.Actor{ID: claims.AccountID}, claims.AccountID)
			if err != nil {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer available"))
				c.Abort()
				return
			}
			if !student.Active {
				response.Error(c, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive"))
				c.Abort()
				return
			}
			c.Set(ContextStudentKey, student)
		default:
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "unknown account kind"))
			c.Abort()
			return
		}
		c.Next()
	}
}
