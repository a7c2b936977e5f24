package router

import (
	"fmt"
	"time"

	"ai-scam-shield-demo/backend/internal/api"
	"ai-scam-shield-demo/backend/internal/guard"
	"ai-scam-shield-demo/backend/internal/ws"
	"ai-scam-shield-demo/backend/pkg/config"
	"ai-scam-shield-demo/backend/pkg/di"
	"ai-scam-shield-demo/backend/pkg/errors"
	"ai-scam-shield-demo/backend/pkg/logger"
	"ai-scam-shield-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container. The defense pipeline
// (security headers, blocklist, then per-route rate limiting and
// sanitization) wraps every API route.
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.LogError(err, "invalid trusted proxy configuration")
	}

	engine.Use(logger.Middleware(container.Logger))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.SecurityHeaders())
	engine.Use(errors.ErrorHandler(cfg.IsProduction()))
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.Blocklist(container.Intel, container.Events))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// routeLimit resolves the configured fixed-window limit for one logical
// route. A missing entry is a deployment mistake and fails at startup.
func (r *Router) routeLimit(name string) guard.RouteConfig {
	limit, ok := r.Config.Security.RouteLimits[name]
	if !ok {
		panic(fmt.Sprintf("no rate limit configured for route %q", name))
	}
	cfg := guard.RouteConfig{Name: name, Limit: limit.Limit, Window: limit.Window}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container
	production := r.Config.IsProduction()
	maxBody := r.Config.Security.MaxBodySize
	maxMessage := r.Config.Security.MaxMessageLength

	analyzeHandler := api.NewAnalyzeHandler(c.Analyzer, c.Fallback, c.History, r.Logger)
	historyHandler := api.NewHistoryHandler(c.History, c.Events, production, r.Logger)
	uploadHandler := api.NewUploadHandler(c.Blobs, c.Events, r.Config.Upload.MaxSize, r.Config.Upload.AllowedTypes, r.Logger)
	feedbackHandler := api.NewFeedbackHandler(r.Logger)
	adminHandler := api.NewAdminHandler(c.Monitor, c.Events, c.Intel, c.JWTService, r.Config.Security.AdminPasswordHash, r.Logger)

	analyzeRules := []guard.ValidationRule{
		{Field: "sessionId", Kind: guard.KindString, MaxLength: 100},
		{Field: "input", Kind: guard.KindObject, Required: true, Children: []guard.ValidationRule{
			{Field: "message", Kind: guard.KindString, Required: true, MaxLength: maxMessage},
			{Field: "url", Kind: guard.KindString, MaxLength: 2048},
			{Field: "imageUrl", Kind: guard.KindString, MaxLength: 2048},
		}},
	}

	historyRules := []guard.ValidationRule{
		{Field: "sessionId", Kind: guard.KindString, Required: true, MaxLength: 100},
		{Field: "role", Kind: guard.KindString, Required: true, Enum: []string{"user", "assistant"}},
		{Field: "content", Kind: guard.KindString, Required: true, MaxLength: maxMessage},
		{Field: "verdict", Kind: guard.KindString, Enum: []string{"likely_safe", "suspicious", "likely_scam"}},
		{Field: "riskScore", Kind: guard.KindNumber},
	}

	feedbackRules := []guard.ValidationRule{
		{Field: "messageId", Kind: guard.KindString, Required: true, MaxLength: 100},
		{Field: "verdict", Kind: guard.KindString, Required: true, Enum: api.FeedbackVerdicts},
	}

	v1 := r.Engine.Group("/api/v1")

	v1.GET("/health", r.healthCheckHandler())

	v1.POST("/analyze",
		middleware.RateLimit(c.Limiter, c.Events, r.routeLimit("analyze")),
		middleware.ValidateJSON(analyzeRules, maxBody, c.Events, production),
		analyzeHandler.Analyze,
	)

	v1.GET("/history",
		middleware.RateLimit(c.Limiter, c.Events, r.routeLimit("history-get")),
		historyHandler.List,
	)
	v1.POST("/history",
		middleware.RateLimit(c.Limiter, c.Events, r.routeLimit("history-post")),
		middleware.ValidateJSON(historyRules, maxBody, c.Events, production),
		historyHandler.Save,
	)

	v1.POST("/upload",
		middleware.RateLimit(c.Limiter, c.Events, r.routeLimit("upload")),
		uploadHandler.Upload,
	)

	v1.POST("/feedback",
		middleware.RateLimit(c.Limiter, c.Events, r.routeLimit("feedback")),
		middleware.ValidateJSON(feedbackRules, maxBody, c.Events, production),
		feedbackHandler.Submit,
	)

	adminLimit := middleware.RateLimit(c.Limiter, c.Events, r.routeLimit("admin"))
	v1.POST("/admin/login", adminLimit, adminHandler.Login)

	adminRoutes := v1.Group("/admin/security")
	adminRoutes.Use(adminLimit, middleware.RequireAdmin(c.JWTService, c.Events))
	{
		adminRoutes.GET("/report", adminHandler.Report)
		adminRoutes.GET("/metrics", adminHandler.Metrics)
		adminRoutes.GET("/threats", adminHandler.Threats)
		adminRoutes.GET("/events", adminHandler.Events)
		adminRoutes.DELETE("/threats/ips/:ip", adminHandler.ClearSuspiciousIP)
		adminRoutes.GET("/live", ws.EventFeed(c.Events, r.Logger))
	}

	// Prometheus exposition for the security counters.
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheckHandler returns a simple health check handler
func (r *Router) healthCheckHandler() gin.HandlerFunc {
	start := time.Now()
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"env":    r.Config.Server.Env,
			"uptime": time.Since(start).Round(time.Second).String(),
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}
