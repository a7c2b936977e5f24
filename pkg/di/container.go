package di

import (
	"context"
	"fmt"

	"ai-scam-shield-demo/backend/internal/guard"
	"ai-scam-shield-demo/backend/internal/models"
	"ai-scam-shield-demo/backend/internal/service"
	"ai-scam-shield-demo/backend/pkg/config"
	"ai-scam-shield-demo/backend/pkg/jwt"
	"ai-scam-shield-demo/backend/pkg/logger"
	"ai-scam-shield-demo/backend/pkg/secrets"

	"github.com/redis/go-redis/v9"
)

// Container holds all the dependencies for the application
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	JWTService  *jwt.Service
	Events      *guard.EventLog
	Intel       *guard.ThreatIntelligence
	Monitor     *guard.Monitor
	Limiter     *guard.Limiter
	MemoryStore *guard.MemoryStore // nil when the Redis store is active
	History     service.HistoryStore
	Blobs       service.BlobStore
	Analyzer    service.Analyzer
	Fallback    service.Analyzer
	Redis       *redis.Client // nil when Redis is disabled
}

// New creates a new dependency injection container. Secrets are resolved
// through the secrets manager with environment fallback.
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	ctx := context.Background()

	c := &Container{
		Config: cfg,
		Logger: log,
	}

	jwtSecret := secrets.GetSecretWithDefault(ctx, "JWT_SECRET", cfg.JWT.Secret)
	c.JWTService = jwt.NewService(jwtSecret, cfg.JWT.Expiry)

	c.Events = guard.NewEventLog(cfg.Security.EventLogCapacity, log)
	c.Intel = guard.NewThreatIntelligence()

	webhookURL := secrets.GetSecretWithDefault(ctx, "SECURITY_WEBHOOK_URL", cfg.Security.WebhookURL)
	c.Monitor = guard.NewMonitor(c.Events, c.Intel, guard.MonitorConfig{
		Interval:           cfg.Security.MonitorInterval,
		WebhookURL:         webhookURL,
		SuspiciousIPEvents: cfg.Security.SuspiciousIPEvents,
	}, log)

	if cfg.Redis.Enabled {
		c.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		c.Limiter = guard.NewLimiter(guard.NewRedisStore(c.Redis), log)
	} else {
		c.MemoryStore = guard.NewMemoryStore()
		c.Limiter = guard.NewLimiter(c.MemoryStore, log)
	}

	if cfg.Database.Enabled {
		db, err := config.NewDB()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.AutoMigrate(&models.HistoryEntry{}, &models.Feedback{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		store := service.HistoryStore(service.NewGormHistoryStore(db))
		if c.Redis != nil {
			store = service.NewCachedHistoryStore(store, c.Redis, 0)
		}
		c.History = store
	} else {
		log.Warn("database disabled, history is in-memory only")
		c.History = service.NewMemoryHistoryStore()
	}

	blobs, err := service.NewLocalBlobStore(cfg.Upload.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	c.Blobs = blobs

	c.Fallback = service.NewHeuristicAnalyzer()
	if cfg.Services.AIServiceURL != "" {
		c.Analyzer = service.NewHTTPAnalyzer(cfg.Services.AIServiceURL)
	} else {
		log.Warn("AI_SERVICE_URL not set, using heuristic analyzer only")
		c.Analyzer = c.Fallback
	}

	return c, nil
}
