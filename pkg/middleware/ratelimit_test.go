package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-scam-shield-demo/backend/internal/guard"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitedRouter(cfg guard.RouteConfig) (*gin.Engine, *guard.EventLog) {
	gin.SetMode(gin.TestMode)
	events := guard.NewEventLog(1000, nil)
	limiter := guard.NewLimiter(guard.NewMemoryStore(), nil)

	r := gin.New()
	r.GET("/api/v1/history", RateLimit(limiter, events, cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r, events
}

func doGet(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/history", nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitRejectsPastLimit(t *testing.T) {
	cfg := guard.RouteConfig{Name: "history-get", Limit: 30, Window: time.Minute}
	r, events := rateLimitedRouter(cfg)

	rejected := 0
	for i := 0; i < 35; i++ {
		w := doGet(r, "203.0.113.7")
		if w.Code == http.StatusTooManyRequests {
			rejected++
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
			assert.Contains(t, w.Body.String(), "Too many requests")
		} else {
			assert.Equal(t, http.StatusOK, w.Code)
		}
	}

	assert.Equal(t, 5, rejected, "35 requests against a limit of 30 must yield exactly 5 rejections")

	// Every rejection is recorded as a rate_limit event.
	recorded := 0
	for _, e := range events.Snapshot() {
		if e.Type == guard.EventRateLimit {
			recorded++
			assert.Equal(t, "203.0.113.7", e.IP)
			assert.Equal(t, "/api/v1/history", e.Endpoint)
		}
	}
	assert.Equal(t, 5, recorded)
}

func TestRateLimitIsolatesClients(t *testing.T) {
	cfg := guard.RouteConfig{Name: "history-get", Limit: 30, Window: time.Minute}
	r, _ := rateLimitedRouter(cfg)

	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, doGet(r, "192.168.1.1").Code)
		assert.Equal(t, http.StatusOK, doGet(r, "192.168.1.2").Code)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	cfg := guard.RouteConfig{Name: "history-get", Limit: 30, Window: time.Minute}
	r, _ := rateLimitedRouter(cfg)

	w := doGet(r, "203.0.113.8")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "29", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitPanicsOnBadConfig(t *testing.T) {
	limiter := guard.NewLimiter(guard.NewMemoryStore(), nil)
	events := guard.NewEventLog(10, nil)

	assert.Panics(t, func() {
		RateLimit(limiter, events, guard.RouteConfig{Name: "", Limit: 0})
	})
}

func TestBlocklist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	events := guard.NewEventLog(10, nil)
	intel := guard.NewThreatIntelligence()
	intel.MarkSuspicious("203.0.113.99")

	r := gin.New()
	r.Use(Blocklist(intel, events))
	r.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.99")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req, _ = http.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.100")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, 1, events.Len())
	assert.Equal(t, guard.EventBlockedRequest, events.Snapshot()[0].Type)
}
