package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-scam-shield-demo/backend/pkg/config"
	"ai-scam-shield-demo/backend/pkg/di"
	"ai-scam-shield-demo/backend/pkg/logger"
	"ai-scam-shield-demo/backend/pkg/router"
	"ai-scam-shield-demo/backend/pkg/secrets"
	"ai-scam-shield-demo/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	cfg := config.Get()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	// Initialize the secrets manager (Vault when enabled, env fallback)
	if err := secrets.Init(log); err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}

	// Observability: tracing plus the Prometheus metric pipeline behind /metrics
	shutdownTracing := observability.SetupTracing("scam-shield-backend")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	// Initialize dependency injection container
	container, err := di.New(cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	// Initialize and setup router
	r := router.New(container)
	r.SetupRoutes()

	// Add OpenAPI validation if schema file is available
	schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH")
	if schemaPath != "" {
		r.AddOpenAPIValidation(schemaPath)
	}

	// Background security scan (threat detection plus webhook alerting)
	container.Monitor.Start()
	defer container.Monitor.Stop()

	// Reclaim stale rate-limit windows when the in-memory store is active
	if container.MemoryStore != nil {
		stopSweeper := container.MemoryStore.StartSweeper(time.Minute, log)
		defer stopSweeper()
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Block until we receive a signal
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
		os.Exit(1)
	}

	log.Info("Server exited")
}
