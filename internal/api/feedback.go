package api

import (
	"net/http"

	"ai-scam-shield-demo/backend/pkg/logger"
	"ai-scam-shield-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// FeedbackVerdicts is the closed set of accepted feedback values.
var FeedbackVerdicts = []string{"helpful", "not_helpful", "false_positive", "false_negative"}

// FeedbackHandler records user feedback on analysis verdicts. The payload
// enum is enforced by the validation stage; anything reaching this handler
// is already clean.
type FeedbackHandler struct {
	log *logger.Logger
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(log *logger.Logger) *FeedbackHandler {
	return &FeedbackHandler{log: log}
}

// Submit acknowledges one feedback item.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	payload := middleware.Payload(c)

	messageID, _ := payload["messageId"].(string)
	verdict, _ := payload["verdict"].(string)

	h.log.Info("feedback received", "message_id", messageID, "verdict", verdict)
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
