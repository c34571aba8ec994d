package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"sosalert/internal/models"
	"sosalert/internal/utils"
)

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthRequired validates the bearer token and sets the user context
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, "Access denied. No token provided.")
			c.Abort()
			return
		}

		token := BearerToken(c)
		if token == "" {
			utils.UnauthorizedResponse(c, "Bearer token required")
			c.Abort()
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			utils.HandleError(c, err)
			c.Abort()
			return
		}

		c.Set(utils.ContextUserID, user.ID)
		c.Set(utils.ContextUserRole, string(user.Role))
		c.Set(utils.ContextUser, user)

		c.Next()
	}
}

// RequireRole must run after AuthRequired.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get(utils.ContextUserRole)
		if !exists {
			utils.UnauthorizedResponse(c, "Authentication required")
			c.Abort()
			return
		}

		roleStr, ok := userRole.(string)
		if !ok || roleStr != string(role) {
			utils.ForbiddenResponse(c, "Access denied. "+capitalize(string(role))+" role required.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// VictimRequired middleware ensures user raised their account as a victim
func VictimRequired() gin.HandlerFunc {
	return RequireRole(models.UserRoleVictim)
}

// VolunteerRequired middleware ensures user is a volunteer
func VolunteerRequired() gin.HandlerFunc {
	return RequireRole(models.UserRoleVolunteer)
}

// CurrentUser returns the user set by AuthRequired, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(utils.ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
