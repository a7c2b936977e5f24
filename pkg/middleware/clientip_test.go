package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func clientIPFor(t *testing.T, remoteAddr string, headers map[string]string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var got string
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		got = ClientIP(c)
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	got := clientIPFor(t, "10.0.0.1:1234", map[string]string{
		"X-Forwarded-For": "203.0.113.7, 10.0.0.2",
		"X-Real-IP":       "203.0.113.8",
	})
	assert.Equal(t, "203.0.113.7", got)
}

func TestClientIPSkipsInvalidForwardedFor(t *testing.T) {
	got := clientIPFor(t, "10.0.0.1:1234", map[string]string{
		"X-Forwarded-For": "not-an-ip",
		"X-Real-IP":       "203.0.113.8",
	})
	assert.Equal(t, "203.0.113.8", got)
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	assert.Equal(t, "10.0.0.1", clientIPFor(t, "10.0.0.1:1234", nil))
}

func TestClientIPAnonymousWhenUnknown(t *testing.T) {
	assert.Equal(t, AnonymousClient, clientIPFor(t, "", nil))
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}
