package api

import (
	"net/http"
	"strconv"

	"ai-scam-shield-demo/backend/internal/guard"
	"ai-scam-shield-demo/backend/internal/models"
	"ai-scam-shield-demo/backend/internal/service"
	"ai-scam-shield-demo/backend/pkg/logger"
	"ai-scam-shield-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// HistoryHandler serves chat history reads and writes behind the defense
// pipeline. Query parameters bypass the JSON validation stage, so List
// runs the signature check itself and reports rejections the same way.
type HistoryHandler struct {
	store      service.HistoryStore
	events     *guard.EventLog
	production bool
	log        *logger.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(store service.HistoryStore, events *guard.EventLog, production bool, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, events: events, production: production, log: log}
}

// List returns the stored entries for a session.
func (h *HistoryHandler) List(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		body := gin.H{"error": "Invalid input"}
		if !h.production {
			body["message"] = "sessionId query parameter is required"
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}
	if sig := guard.MatchAttackSignature(sessionID); sig != "" {
		h.events.Log(guard.SecurityEvent{
			Type:      guard.EventInvalidInput,
			Severity:  guard.SeverityHigh,
			Message:   "history query matches " + sig + " pattern",
			IP:        middleware.ClientIP(c),
			UserAgent: c.Request.UserAgent(),
			Endpoint:  c.Request.URL.Path,
		})
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	entries, err := h.store.List(c.Request.Context(), sessionID, limit)
	if err != nil {
		h.log.LogError(err, "failed to list history", "session_id", sessionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "entries": entries})
}

// Save stores a history entry from the sanitized payload.
func (h *HistoryHandler) Save(c *gin.Context) {
	payload := middleware.Payload(c)

	entry := &models.HistoryEntry{}
	if s, ok := payload["sessionId"].(string); ok {
		entry.SessionID = s
	}
	if s, ok := payload["role"].(string); ok {
		entry.Role = s
	}
	if s, ok := payload["content"].(string); ok {
		entry.Content = s
	}
	if v, ok := payload["riskScore"].(float64); ok {
		entry.RiskScore = v
	}
	if s, ok := payload["verdict"].(string); ok {
		entry.Verdict = s
	}

	if err := h.store.Save(c.Request.Context(), entry); err != nil {
		h.log.LogError(err, "failed to save history entry", "session_id", entry.SessionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save history"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": entry.ID})
}
