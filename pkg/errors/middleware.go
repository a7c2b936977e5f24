package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"ai-scam-shield-demo/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler returns a middleware that catches and formats application errors.
// Validation failures are rendered with a stable "Invalid input" error string;
// the specific cause is only included outside production so probing clients
// cannot learn which check rejected them.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors[0].Err
		appErr := FromError(err)

		log := logger.FromContext(c)
		log.Error("request error",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"message", appErr.Message,
		)

		if IsValidationCode(appErr.Code) {
			body := gin.H{"error": "Invalid input"}
			if !production {
				body["message"] = appErr.Message
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, body)
			return
		}

		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
	}
}

// RecoveryWithLogger returns a middleware that recovers from panics and logs
// them with the request-scoped logger.
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())

				log := logger.FromContext(c)
				log.Error("panic recovered",
					"error", fmt.Sprintf("%v", r),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"stack", stack,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "The server encountered an unexpected error",
					"code":  "SERVER_ERROR",
				})
			}
		}()

		c.Next()
	}
}
