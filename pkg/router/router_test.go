package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-scam-shield-demo/backend/internal/guard"
	"ai-scam-shield-demo/backend/internal/service"
	"ai-scam-shield-demo/backend/pkg/config"
	"ai-scam-shield-demo/backend/pkg/di"
	"ai-scam-shield-demo/backend/pkg/jwt"
	"ai-scam-shield-demo/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) (*Router, *di.Container) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Get()
	log := logger.GetGlobal()

	blobs, err := service.NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	events := guard.NewEventLog(cfg.Security.EventLogCapacity, log)
	intel := guard.NewThreatIntelligence()

	container := &di.Container{
		Config:     cfg,
		Logger:     log,
		JWTService: jwt.NewService("test-secret", cfg.JWT.Expiry),
		Events:     events,
		Intel:      intel,
		Monitor:    guard.NewMonitor(events, intel, guard.MonitorConfig{}, log),
		Limiter:    guard.NewLimiter(guard.NewMemoryStore(), log),
		History:    service.NewMemoryHistoryStore(),
		Blobs:      blobs,
		Analyzer:   service.NewHeuristicAnalyzer(),
		Fallback:   service.NewHeuristicAnalyzer(),
	}

	r := New(container)
	r.SetupRoutes()
	return r, container
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	r, _ := testRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestAnalyzeRejectsMaliciousInput(t *testing.T) {
	r, c := testRouter(t)

	body := `{"input": {"message": "'; DROP TABLE users; --"}}`
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid input")
	assert.NotContains(t, w.Body.String(), "DROP")

	require.Equal(t, 1, c.Events.Len())
	assert.Equal(t, guard.EventInvalidInput, c.Events.Snapshot()[0].Type)
}

func TestAnalyzeAcceptsCleanInput(t *testing.T) {
	r, _ := testRouter(t)

	body := `{"input": {"message": "someone asked me for a gift card, is that a scam?"}}`
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.11")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "verdict")
}

func TestMetricsEndpointExposed(t *testing.T) {
	r, _ := testRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminSecurityLockedDown(t *testing.T) {
	r, _ := testRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/admin/security/report", nil)
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
