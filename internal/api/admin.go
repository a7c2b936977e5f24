package api

import (
	"net/http"
	"strconv"
	"time"

	"ai-scam-shield-demo/backend/internal/guard"
	"ai-scam-shield-demo/backend/pkg/jwt"
	"ai-scam-shield-demo/backend/pkg/logger"
	"ai-scam-shield-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminHandler exposes the security reporting surface: login, metrics,
// threat assessment, the raw event tail and the rendered report.
type AdminHandler struct {
	monitor      *guard.Monitor
	events       *guard.EventLog
	intel        *guard.ThreatIntelligence
	jwtService   *jwt.Service
	passwordHash string
	log          *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(monitor *guard.Monitor, events *guard.EventLog, intel *guard.ThreatIntelligence, jwtService *jwt.Service, passwordHash string, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		monitor:      monitor,
		events:       events,
		intel:        intel,
		jwtService:   jwtService,
		passwordHash: passwordHash,
		log:          log,
	}
}

// Login exchanges the operator password for an admin token.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if h.passwordHash == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access is not configured"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)); err != nil {
		h.events.Log(guard.SecurityEvent{
			Type:      guard.EventSuspiciousActivity,
			Severity:  guard.SeverityMedium,
			Message:   "failed admin login attempt",
			IP:        middleware.ClientIP(c),
			UserAgent: c.Request.UserAgent(),
			Endpoint:  c.Request.URL.Path,
		})
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.jwtService.GenerateToken(req.Username, jwt.RoleAdmin)
	if err != nil {
		h.log.LogError(err, "failed to issue admin token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Metrics returns aggregate security metrics for a trailing window.
func (h *AdminHandler) Metrics(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 24*7 {
			hours = v
		}
	}
	c.JSON(http.StatusOK, h.monitor.Metrics(time.Duration(hours)*time.Hour))
}

// Threats returns the current threat assessment.
func (h *AdminHandler) Threats(c *gin.Context) {
	assessment := h.monitor.IdentifyThreats()
	c.JSON(http.StatusOK, gin.H{
		"assessment":    assessment,
		"suspiciousIPs": h.intel.SuspiciousIPs(),
		"lastUpdated":   h.intel.LastUpdated(),
	})
}

// ClearSuspiciousIP removes an IP from the suspicious set (admin reset).
func (h *AdminHandler) ClearSuspiciousIP(c *gin.Context) {
	ip := c.Param("ip")
	h.intel.ClearSuspicious(ip)
	h.log.Info("suspicious flag cleared", "ip", ip, "by", c.GetString("subject"))
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// Events returns the most recent security events.
func (h *AdminHandler) Events(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	c.JSON(http.StatusOK, gin.H{"events": h.events.Events(limit)})
}

// Report returns the rendered operator report as plain text.
func (h *AdminHandler) Report(c *gin.Context) {
	c.String(http.StatusOK, h.monitor.Report())
}
