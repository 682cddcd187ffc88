package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Gl0balRak/textanalyzer-gateway/auth"
	"github.com/Gl0balRak/textanalyzer-gateway/models"
)

// ContextUserKey is where the authenticated user lives in the gin context.
const ContextUserKey = "auth_user"

// Auth returns bearer-token authentication middleware backed by the
// external auth service. Pass a nil authenticator for open access.
func Auth(authenticator auth.Authenticator) gin.HandlerFunc {
	if authenticator == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeUnauthorized,
					Message: "missing token: provide Authorization: Bearer <token>",
				},
			})
			return
		}

		user, err := authenticator.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeUnauthorized,
					Message: "invalid or expired token",
				},
			})
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// extractToken reads the Authorization: Bearer header.
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
