package middleware

import (
	"net/http"
	"strconv"

	"ai-scam-shield-demo/backend/internal/guard"

	"github.com/gin-gonic/gin"
)

// RateLimit returns a middleware applying the fixed-window limiter for one
// logical route. Rejections short-circuit with 429, a Retry-After header and
// a rate_limit security event; admitted requests pass through with the
// X-RateLimit-* headers set.
func RateLimit(limiter *guard.Limiter, events *guard.EventLog, cfg guard.RouteConfig) gin.HandlerFunc {
	// A malformed route config is a programming error; fail at startup,
	// not at request time.
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return func(c *gin.Context) {
		ip := ClientIP(c)
		key := guard.RateLimitKey(ip, cfg.Name)

		decision := limiter.Check(c.Request.Context(), key, cfg)

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetTime.Unix(), 10))

		if decision.Allowed {
			c.Next()
			return
		}

		events.Log(guard.SecurityEvent{
			Type:      guard.EventRateLimit,
			Severity:  guard.SeverityMedium,
			Message:   "rate limit exceeded for route " + cfg.Name,
			IP:        ip,
			UserAgent: c.Request.UserAgent(),
			Endpoint:  c.Request.URL.Path,
			Metadata:  map[string]any{"route": cfg.Name, "limit": decision.Limit},
		})

		c.Header("Retry-After", strconv.Itoa(decision.RetryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "Too many requests",
			"retryAfter": decision.RetryAfter,
		})
	}
}

// Blocklist short-circuits requests from IPs currently flagged by the
// threat intelligence aggregate, before they consume rate-limit quota.
func Blocklist(intel *guard.ThreatIntelligence, events *guard.EventLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ClientIP(c)
		if !intel.IsSuspicious(ip) {
			c.Next()
			return
		}

		events.Log(guard.SecurityEvent{
			Type:      guard.EventBlockedRequest,
			Severity:  guard.SeverityHigh,
			Message:   "request from suspicious IP blocked",
			IP:        ip,
			UserAgent: c.Request.UserAgent(),
			Endpoint:  c.Request.URL.Path,
		})

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	}
}
