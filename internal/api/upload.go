package api

import (
	"net/http"

	"ai-scam-shield-demo/backend/internal/guard"
	"ai-scam-shield-demo/backend/internal/service"
	"ai-scam-shield-demo/backend/pkg/logger"
	"ai-scam-shield-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// UploadHandler accepts screenshot uploads for image analysis. File
// metadata is validated here (size, content-type allow-list, filename
// signatures); the blob store itself stays opaque.
type UploadHandler struct {
	blobs        service.BlobStore
	events       *guard.EventLog
	maxSize      int64
	allowedTypes map[string]struct{}
	log          *logger.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(blobs service.BlobStore, events *guard.EventLog, maxSize int64, allowedTypes []string, log *logger.Logger) *UploadHandler {
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = struct{}{}
	}
	return &UploadHandler{
		blobs:        blobs,
		events:       events,
		maxSize:      maxSize,
		allowedTypes: allowed,
		log:          log,
	}
}

// Upload validates and stores one multipart file.
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		h.reject(c, "upload without file part")
		return
	}

	if file.Size > h.maxSize {
		h.reject(c, "upload exceeds size limit")
		return
	}

	contentType := file.Header.Get("Content-Type")
	if _, ok := h.allowedTypes[contentType]; !ok {
		h.reject(c, "upload with disallowed content type "+contentType)
		return
	}

	if sig := guard.MatchAttackSignature(file.Filename); sig != "" {
		h.reject(c, "upload filename matches "+sig+" pattern")
		return
	}

	src, err := file.Open()
	if err != nil {
		h.log.LogError(err, "failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}
	defer src.Close()

	id, err := h.blobs.Put(c.Request.Context(), file.Filename, src)
	if err != nil {
		h.log.LogError(err, "failed to store upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *UploadHandler) reject(c *gin.Context, reason string) {
	h.events.Log(guard.SecurityEvent{
		Type:      guard.EventInvalidInput,
		Severity:  guard.SeverityLow,
		Message:   reason,
		IP:        middleware.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
		Endpoint:  c.Request.URL.Path,
	})
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
}
