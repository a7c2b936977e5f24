package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// RouteLimit configures the fixed-window rate limit for one logical endpoint.
type RouteLimit struct {
	Limit  int
	Window time.Duration
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Enabled  bool
	}

	// Redis configuration
	Redis struct {
		Addr    string
		Enabled bool
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration for the request-defense layer
	Security struct {
		RouteLimits        map[string]RouteLimit
		EventLogCapacity   int
		MonitorInterval    time.Duration
		WebhookURL         string
		TrustedProxies     []string
		MaxBodySize        int64
		MaxMessageLength   int
		AdminPasswordHash  string
		SuspiciousIPEvents int
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Service endpoints
	Services struct {
		AIServiceURL string
	}

	// Upload settings
	Upload struct {
		Dir          string
		MaxSize      int64
		AllowedTypes []string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Uses singleton pattern to ensure only one instance exists.
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "scam-shield")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Enabled = getEnvBool("DB_ENABLED", false)

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Security config. Each logical endpoint gets its own counter, so a
		// client's upload quota is independent of its history-read quota.
		instance.Security.RouteLimits = map[string]RouteLimit{
			"analyze":      {Limit: getEnvInt("RATE_LIMIT_ANALYZE", 20), Window: getEnvDuration("RATE_WINDOW_ANALYZE", time.Minute)},
			"history-get":  {Limit: getEnvInt("RATE_LIMIT_HISTORY_GET", 60), Window: getEnvDuration("RATE_WINDOW_HISTORY_GET", time.Minute)},
			"history-post": {Limit: getEnvInt("RATE_LIMIT_HISTORY_POST", 30), Window: getEnvDuration("RATE_WINDOW_HISTORY_POST", time.Minute)},
			"upload":       {Limit: getEnvInt("RATE_LIMIT_UPLOAD", 10), Window: getEnvDuration("RATE_WINDOW_UPLOAD", time.Minute)},
			"feedback":     {Limit: getEnvInt("RATE_LIMIT_FEEDBACK", 30), Window: getEnvDuration("RATE_WINDOW_FEEDBACK", time.Minute)},
			"admin":        {Limit: getEnvInt("RATE_LIMIT_ADMIN", 30), Window: getEnvDuration("RATE_WINDOW_ADMIN", time.Minute)},
		}
		instance.Security.EventLogCapacity = getEnvInt("SECURITY_EVENT_CAPACITY", 1000)
		instance.Security.MonitorInterval = getEnvDuration("SECURITY_MONITOR_INTERVAL", 5*time.Minute)
		instance.Security.WebhookURL = getEnvString("SECURITY_WEBHOOK_URL", "")
		instance.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
		instance.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB
		instance.Security.MaxMessageLength = getEnvInt("MAX_MESSAGE_LENGTH", 5000)
		instance.Security.AdminPasswordHash = getEnvString("ADMIN_PASSWORD_HASH", "")
		instance.Security.SuspiciousIPEvents = getEnvInt("SUSPICIOUS_IP_EVENTS", 10)

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Service endpoints
		instance.Services.AIServiceURL = getEnvString("AI_SERVICE_URL", "")

		// Upload settings
		instance.Upload.Dir = getEnvString("UPLOAD_DIR", os.TempDir())
		instance.Upload.MaxSize = getEnvInt64("MAX_UPLOAD_SIZE", 5<<20) // 5MB
		instance.Upload.AllowedTypes = getEnvStringSlice("UPLOAD_ALLOWED_TYPES", []string{"image/png", "image/jpeg", "image/webp"})
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
