package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// AnonymousClient is the rate-limit bucket used when no client IP can be
// determined.
const AnonymousClient = "anonymous"

// ClientIP derives the client IP for rate-limit keys and event records:
// first entry of X-Forwarded-For, then X-Real-IP, then the connection's
// remote address. Falls back to a constant anonymous bucket.
func ClientIP(c *gin.Context) string {
	if xff := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if xri := strings.TrimSpace(c.GetHeader("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if ip := strings.TrimSpace(c.Request.RemoteAddr); ip != "" && net.ParseIP(ip) != nil {
		return ip
	}

	return AnonymousClient
}
