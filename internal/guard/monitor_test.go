package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T, webhookURL string) (*Monitor, *EventLog, *ThreatIntelligence) {
	t.Helper()
	events := NewEventLog(1000, nil)
	intel := NewThreatIntelligence()
	m := NewMonitor(events, intel, MonitorConfig{WebhookURL: webhookURL}, nil)
	return m, events, intel
}

func logN(events *EventLog, n int, template SecurityEvent, ts time.Time) {
	for i := 0; i < n; i++ {
		e := template
		e.Timestamp = ts
		events.Log(e)
	}
}

func TestIdentifyThreatsSuspiciousIPBoundary(t *testing.T) {
	m, events, intel := newTestMonitor(t, "")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Exactly the threshold: not suspicious.
	logN(events, 10, SecurityEvent{Type: EventInvalidInput, Severity: SeverityLow, IP: "10.0.0.1"}, now.Add(-time.Minute))
	assessment := m.IdentifyThreats()
	assert.Empty(t, assessment.SuspiciousIPs)
	assert.False(t, intel.IsSuspicious("10.0.0.1"))

	// One more pushes it over.
	logN(events, 1, SecurityEvent{Type: EventInvalidInput, Severity: SeverityLow, IP: "10.0.0.1"}, now.Add(-time.Minute))
	assessment = m.IdentifyThreats()
	require.Len(t, assessment.SuspiciousIPs, 1)
	assert.Equal(t, "10.0.0.1", assessment.SuspiciousIPs[0].Key)
	assert.Equal(t, 11, assessment.SuspiciousIPs[0].Count)
	assert.True(t, intel.IsSuspicious("10.0.0.1"))
}

func TestIdentifyThreatsIgnoresEventsOlderThanAnHour(t *testing.T) {
	m, events, _ := newTestMonitor(t, "")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	logN(events, 20, SecurityEvent{Type: EventInvalidInput, Severity: SeverityLow, IP: "10.0.0.9"}, now.Add(-2*time.Hour))

	assessment := m.IdentifyThreats()
	assert.Empty(t, assessment.SuspiciousIPs)
}

func TestIdentifyThreatsPatternRecurrence(t *testing.T) {
	m, events, _ := newTestMonitor(t, "")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Five occurrences: at the threshold, not reported.
	logN(events, 5, SecurityEvent{
		Type:     EventInvalidInput,
		Severity: SeverityHigh,
		Message:  "input matches sql injection pattern",
		IP:       "10.0.0.2",
	}, now.Add(-time.Minute))
	assert.Empty(t, m.IdentifyThreats().AttackPatterns)

	// The sixth crosses it.
	logN(events, 1, SecurityEvent{
		Type:     EventInvalidInput,
		Severity: SeverityHigh,
		Message:  "input matches sql injection pattern",
		IP:       "10.0.0.2",
	}, now.Add(-time.Minute))
	patterns := m.IdentifyThreats().AttackPatterns
	require.Len(t, patterns, 1)
	assert.Equal(t, "SQL injection attempt", patterns[0].Key)
	assert.Equal(t, 6, patterns[0].Count)
}

func TestMetricsAggregation(t *testing.T) {
	m, events, _ := newTestMonitor(t, "")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	logN(events, 3, SecurityEvent{Type: EventRateLimit, Severity: SeverityMedium, IP: "10.0.0.1", Endpoint: "/api/v1/analyze"}, now.Add(-time.Minute))
	logN(events, 2, SecurityEvent{Type: EventInvalidInput, Severity: SeverityHigh, IP: "10.0.0.2", Endpoint: "/api/v1/history"}, now.Add(-time.Minute))
	// Outside the window: excluded.
	logN(events, 5, SecurityEvent{Type: EventInvalidInput, Severity: SeverityLow, IP: "10.0.0.3", Endpoint: "/api/v1/upload"}, now.Add(-48*time.Hour))

	metrics := m.Metrics(24 * time.Hour)
	assert.Equal(t, 5, metrics.Total)
	assert.Equal(t, 3, metrics.ByType[EventRateLimit])
	assert.Equal(t, 2, metrics.ByType[EventInvalidInput])
	assert.Equal(t, 3, metrics.BySeverity[SeverityMedium])
	assert.Equal(t, 2, metrics.BySeverity[SeverityHigh])

	require.Len(t, metrics.TopIPs, 2)
	assert.Equal(t, CountEntry{Key: "10.0.0.1", Count: 3}, metrics.TopIPs[0])
	assert.Equal(t, CountEntry{Key: "10.0.0.2", Count: 2}, metrics.TopIPs[1])

	require.Len(t, metrics.TopEndpoints, 2)
	assert.Equal(t, "/api/v1/analyze", metrics.TopEndpoints[0].Key)
}

func TestMetricsTopCountsFirstSeenTieBreak(t *testing.T) {
	m, events, _ := newTestMonitor(t, "")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Equal counts; 10.0.0.5 appears first and must stay ahead.
	for i := 0; i < 3; i++ {
		logN(events, 1, SecurityEvent{Type: EventRateLimit, Severity: SeverityMedium, IP: "10.0.0.5"}, now.Add(-time.Minute))
		logN(events, 1, SecurityEvent{Type: EventRateLimit, Severity: SeverityMedium, IP: "10.0.0.6"}, now.Add(-time.Minute))
	}

	metrics := m.Metrics(time.Hour)
	require.Len(t, metrics.TopIPs, 2)
	assert.Equal(t, "10.0.0.5", metrics.TopIPs[0].Key)
	assert.Equal(t, "10.0.0.6", metrics.TopIPs[1].Key)
}

func TestMetricsRecentCappedAtTwenty(t *testing.T) {
	m, events, _ := newTestMonitor(t, "")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 25; i++ {
		events.Log(SecurityEvent{
			Type:      EventInvalidInput,
			Severity:  SeverityLow,
			Message:   fmt.Sprintf("event-%d", i),
			Timestamp: now.Add(-time.Minute),
		})
	}

	metrics := m.Metrics(time.Hour)
	require.Len(t, metrics.Recent, 20)
	assert.Equal(t, "event-5", metrics.Recent[0].Message)
	assert.Equal(t, "event-24", metrics.Recent[19].Message)
}

func TestReportSections(t *testing.T) {
	m, events, _ := newTestMonitor(t, "")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	logN(events, 2, SecurityEvent{Type: EventRateLimit, Severity: SeverityMedium, IP: "10.0.0.1", Endpoint: "/api/v1/analyze"}, now.Add(-time.Minute))

	report := m.Report()
	assert.Contains(t, report, "SECURITY REPORT")
	assert.Contains(t, report, "Total events: 2")
	assert.Contains(t, report, "rate_limit")
	assert.Contains(t, report, "10.0.0.1")
	assert.Contains(t, report, "Recommendations:")
	assert.Contains(t, report, "No suspicious IPs.")
}

func TestSendAlertsFiresWebhookAboveThreshold(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m, events, _ := newTestMonitor(t, server.URL)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Eleven high-severity events in the last five minutes crosses the
	// high/critical alert threshold.
	logN(events, 11, SecurityEvent{Type: EventInvalidInput, Severity: SeverityHigh, IP: "10.0.0.7"}, now.Add(-time.Minute))

	m.SendAlerts(context.Background())

	require.NotEmpty(t, received, "webhook was not called")
	var payload map[string]any
	require.NoError(t, json.Unmarshal(received, &payload))
	assert.Equal(t, "Security thresholds exceeded", payload["message"])
	assert.Equal(t, "high", payload["severity"])
}

func TestSendAlertsQuietBelowThresholds(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	m, events, _ := newTestMonitor(t, server.URL)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	logN(events, 3, SecurityEvent{Type: EventInvalidInput, Severity: SeverityHigh, IP: "10.0.0.8"}, now.Add(-time.Minute))

	m.SendAlerts(context.Background())
	assert.False(t, called, "no alert expected below thresholds")
}

func TestClassifyMessage(t *testing.T) {
	assert.Equal(t, "SQL injection attempt", classifyMessage("input matches sql injection pattern"))
	assert.Equal(t, "XSS attempt", classifyMessage("input matches script injection pattern"))
	assert.Equal(t, "rate limit abuse", classifyMessage("rate limit exceeded for route analyze"))
	assert.Equal(t, "", classifyMessage("nothing interesting"))
}
