package middleware

import (
	"encoding/json"
	"io"
	"net/http"

	"ai-scam-shield-demo/backend/internal/guard"
	apperrors "ai-scam-shield-demo/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// PayloadKey is the context key under which the sanitized payload is stored
// for the wrapped handler.
const PayloadKey = "sanitizedPayload"

// ValidateJSON returns a middleware that parses a JSON body, validates it
// against the given rules and stores the sanitized payload in the context.
// Failures short-circuit with 400 and a stable "Invalid input" error string;
// the specific cause is only included outside production, and the matched
// attack signature is never echoed back.
func ValidateJSON(rules []guard.ValidationRule, maxBody int64, events *guard.EventLog, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody+1))
		if err != nil {
			rejectInput(c, events, production, apperrors.CodeMalformedStructure, "failed to read request body")
			return
		}
		if int64(len(body)) > maxBody {
			rejectInput(c, events, production, apperrors.CodePayloadTooLarge, "request body exceeds size limit")
			return
		}

		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			rejectInput(c, events, production, apperrors.CodeMalformedStructure, "malformed JSON body")
			return
		}

		clean, err := guard.ValidatePayload(payload, rules)
		if err != nil {
			detail := err.Error()
			code := apperrors.CodeMalformedStructure
			if verr, ok := err.(*guard.ValidationError); ok {
				code = verr.Code
			}
			rejectInput(c, events, production, code, detail)
			return
		}

		c.Set(PayloadKey, clean)
		c.Next()
	}
}

// Payload returns the sanitized payload stored by ValidateJSON.
func Payload(c *gin.Context) map[string]any {
	if v, exists := c.Get(PayloadKey); exists {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

func rejectInput(c *gin.Context, events *guard.EventLog, production bool, code, detail string) {
	events.Log(guard.SecurityEvent{
		Type:      guard.EventInvalidInput,
		Severity:  severityForCode(code),
		Message:   detail,
		IP:        ClientIP(c),
		UserAgent: c.Request.UserAgent(),
		Endpoint:  c.Request.URL.Path,
		Metadata:  map[string]any{"code": code},
	})

	body := gin.H{"error": "Invalid input"}
	if !production {
		body["message"] = detail
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

func severityForCode(code string) guard.Severity {
	if code == apperrors.CodeDisallowedContent {
		return guard.SeverityHigh
	}
	return guard.SeverityLow
}
