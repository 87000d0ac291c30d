package middleware

import (
	"net/http"

	"civic-reporter/internal/models"

	"github.com/gin-gonic/gin"
)

func roleFromContext(c *gin.Context) (models.UserRole, bool) {
	roleInterface, exists := c.Get(ContextRole)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		c.Abort()
		return "", false
	}

	roleStr, ok := roleInterface.(string)
	if !ok || roleStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid user role",
		})
		c.Abort()
		return "", false
	}

	userRole := models.UserRole(roleStr)
	if !userRole.IsValid() {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Invalid role",
		})
		c.Abort()
		return "", false
	}
	return userRole, true
}

// RequireRole admits callers whose role is at least minRole.
func RequireRole(minRole models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, ok := roleFromContext(c)
		if !ok {
			return
		}

		if !userRole.IsHigherOrEqual(minRole) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":         "Insufficient permissions",
				"required_role": minRole,
				"user_role":     userRole,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAnyRole admits callers holding exactly one of roles.
func RequireAnyRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, ok := roleFromContext(c)
		if !ok {
			return
		}

		for _, allowedRole := range roles {
			if userRole == allowedRole {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":          "Insufficient permissions",
			"required_roles": roles,
			"user_role":      userRole,
		})
		c.Abort()
	}
}

// RequireOfficial admits government staff and admins.
func RequireOfficial() gin.HandlerFunc {
	return RequireRole(models.RoleGovernment)
}
