package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Middleware returns a Gin middleware function that logs requests and
// stores a request-scoped logger in the context.
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-ID", requestID)
		}

		reqLogger := logger.WithRequestID(requestID).WithClientIP(c.ClientIP())
		c.Set("logger", reqLogger)

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		path := c.Request.URL.Path
		method := c.Request.Method

		reqLogger.LogRequest(method, path, status, latency)

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				reqLogger.LogError(err.Err, "request error",
					"method", method,
					"path", path,
					"error_type", err.Type,
				)
			}
		}
	}
}

// FromContext returns the request-scoped logger, falling back to the global one.
func FromContext(c *gin.Context) *Logger {
	if v, exists := c.Get("logger"); exists {
		if l, ok := v.(*Logger); ok {
			return l
		}
	}
	return GetGlobal()
}
