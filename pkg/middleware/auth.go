package middleware

import (
	"net/http"
	"strings"

	"ai-scam-shield-demo/backend/internal/guard"
	"ai-scam-shield-demo/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// RequireAdmin authenticates the security reporting endpoints. Failed
// attempts are recorded as suspicious activity.
func RequireAdmin(jwtService *jwt.Service, events *guard.EventLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			events.Log(guard.SecurityEvent{
				Type:      guard.EventSuspiciousActivity,
				Severity:  guard.SeverityMedium,
				Message:   "admin endpoint called with invalid token",
				IP:        ClientIP(c),
				UserAgent: c.Request.UserAgent(),
				Endpoint:  c.Request.URL.Path,
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if claims.Role != jwt.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}
