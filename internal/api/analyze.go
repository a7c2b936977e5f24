package api

import (
	"net/http"

	"ai-scam-shield-demo/backend/internal/models"
	"ai-scam-shield-demo/backend/internal/service"
	"ai-scam-shield-demo/backend/pkg/logger"
	"ai-scam-shield-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AnalyzeHandler handles scam-analysis requests. It only ever sees payloads
// that already passed the rate-limit and sanitization stages.
type AnalyzeHandler struct {
	analyzer service.Analyzer
	fallback service.Analyzer
	history  service.HistoryStore
	log      *logger.Logger
}

// NewAnalyzeHandler creates a new analyze handler. fallback may be nil.
func NewAnalyzeHandler(analyzer, fallback service.Analyzer, history service.HistoryStore, log *logger.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer: analyzer,
		fallback: fallback,
		history:  history,
		log:      log,
	}
}

// Analyze runs the submitted content through the analysis backend and
// records the exchange in history.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	payload := middleware.Payload(c)
	input, _ := payload["input"].(map[string]any)

	req := service.AnalysisRequest{}
	if s, ok := input["message"].(string); ok {
		req.Message = s
	}
	if s, ok := input["url"].(string); ok {
		req.URL = s
	}
	if s, ok := input["imageUrl"].(string); ok {
		req.ImageURL = s
	}

	sessionID, _ := payload["sessionId"].(string)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), req)
	if err != nil && h.fallback != nil {
		h.log.Warn("analysis backend failed, using heuristic fallback", "error", err.Error())
		result, err = h.fallback.Analyze(c.Request.Context(), req)
	}
	if err != nil {
		h.log.LogError(err, "analysis failed", "session_id", sessionID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis service unavailable"})
		return
	}

	if err := h.history.Save(c.Request.Context(), &models.HistoryEntry{
		SessionID: sessionID,
		Role:      "user",
		Content:   req.Message,
		Verdict:   result.Verdict,
		RiskScore: result.RiskScore,
	}); err != nil {
		// The verdict is still useful without a history record.
		h.log.LogError(err, "failed to persist history entry", "session_id", sessionID)
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": sessionID,
		"result":    result,
	})
}
