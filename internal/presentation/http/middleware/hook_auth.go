package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/security"
)

// HookAuth requires a bearer token signed with secret and carrying the hook
// scope. With no secret configured every call is refused.
func HookAuth(secret string, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "hook authentication is not configured"})
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := security.ValidateJWT(token, secret)
		if err != nil {
			logger.HTTP().Warn("Rejected hook token", "error", err.Error(), "path", c.Request.URL.Path, "requestId", GetRequestID(c))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !security.HasHookScope(claims) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token lacks hook scope"})
			return
		}

		if subject, ok := claims["sub"].(string); ok {
			c.Set("hookSubject", subject)
		}
		c.Next()
	}
}
