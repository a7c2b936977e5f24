package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"ai-scam-shield-demo/backend/pkg/logger"

	"golang.org/x/time/rate"
)

// CountEntry is a key with its event count.
type CountEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// SecurityMetrics are aggregate counts derived from the event log for a
// trailing window.
type SecurityMetrics struct {
	Window       time.Duration     `json:"-"`
	WindowHours  float64           `json:"windowHours"`
	Total        int               `json:"total"`
	ByType       map[EventType]int `json:"byType"`
	BySeverity   map[Severity]int  `json:"bySeverity"`
	TopIPs       []CountEntry      `json:"topIPs"`
	TopEndpoints []CountEntry      `json:"topEndpoints"`
	Recent       []SecurityEvent   `json:"recent"`
	GeneratedAt  time.Time         `json:"generatedAt"`
}

// ThreatAssessment is the outcome of a threat identification scan.
type ThreatAssessment struct {
	SuspiciousIPs   []CountEntry `json:"suspiciousIPs"`
	AttackPatterns  []CountEntry `json:"attackPatterns"`
	Recommendations []string     `json:"recommendations"`
}

// messagePatterns classify event messages into named attack patterns by
// keyword. Order matters: the first match wins.
var messagePatterns = []struct {
	name     string
	keywords []string
}{
	{"SQL injection attempt", []string{"sql injection", "drop table", "union select"}},
	{"XSS attempt", []string{"script injection", "<script", "javascript:"}},
	{"command injection attempt", []string{"command injection"}},
	{"path traversal attempt", []string{"path traversal", "../"}},
	{"prototype pollution attempt", []string{"prototype pollution", "__proto__"}},
	{"rate limit abuse", []string{"rate limit"}},
	{"malformed JSON", []string{"malformed", "invalid json"}},
	{"malicious pattern", []string{"malicious", "disallowed content"}},
}

const (
	suspiciousIPThreshold  = 10
	patternRecurThreshold  = 5
	alertSuspiciousIPs     = 5
	alertAttackPatterns    = 3
	alertHighCriticalCount = 10
)

// MonitorConfig configures the background security monitor.
type MonitorConfig struct {
	// Interval between scheduled alert scans.
	Interval time.Duration
	// WebhookURL is the optional outbound alert endpoint. Empty disables
	// webhook delivery; alerts are still logged locally.
	WebhookURL string
	// SuspiciousIPEvents overrides the per-IP hourly event count above
	// which an IP is flagged. Zero keeps the default.
	SuspiciousIPEvents int
}

// Monitor derives metrics and threat signals from the event log and runs the
// scheduled alert scan. It only ever takes read snapshots of shared state,
// so a scan never stalls the request path.
type Monitor struct {
	events *EventLog
	intel  *ThreatIntelligence
	log    *logger.Logger

	webhookURL   string
	client       *http.Client
	alertLimiter *rate.Limiter
	interval     time.Duration
	ipThreshold  int

	now  func() time.Time
	stop chan struct{}
}

// NewMonitor creates a monitor over the given event log and threat
// intelligence aggregate.
func NewMonitor(events *EventLog, intel *ThreatIntelligence, cfg MonitorConfig, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.GetGlobal()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.SuspiciousIPEvents <= 0 {
		cfg.SuspiciousIPEvents = suspiciousIPThreshold
	}
	return &Monitor{
		events:     events,
		intel:      intel,
		log:        log.WithComponent("monitor"),
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// One alert burst per minute keeps a noisy webhook from being
		// hammered when every scan fires.
		alertLimiter: rate.NewLimiter(rate.Every(time.Minute), 3),
		interval:     cfg.Interval,
		ipThreshold:  cfg.SuspiciousIPEvents,
		now:          time.Now,
		stop:         make(chan struct{}),
	}
}

// Metrics aggregates events within the trailing window: counts by type and
// severity, the top-10 IPs and endpoints by event count (ties broken by
// first-seen order), and the 20 most recent events verbatim.
func (m *Monitor) Metrics(window time.Duration) SecurityMetrics {
	now := m.now()
	cutoff := now.Add(-window)

	snapshot := m.events.Snapshot()
	metrics := SecurityMetrics{
		Window:      window,
		WindowHours: window.Hours(),
		ByType:      make(map[EventType]int),
		BySeverity:  make(map[Severity]int),
		GeneratedAt: now,
	}

	var windowed []SecurityEvent
	for _, e := range snapshot {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		windowed = append(windowed, e)
		metrics.ByType[e.Type]++
		metrics.BySeverity[e.Severity]++
	}
	metrics.Total = len(windowed)

	metrics.TopIPs = topCounts(windowed, func(e SecurityEvent) string { return e.IP }, 10)
	metrics.TopEndpoints = topCounts(windowed, func(e SecurityEvent) string { return e.Endpoint }, 10)

	recent := windowed
	if len(recent) > 20 {
		recent = recent[len(recent)-20:]
	}
	metrics.Recent = append([]SecurityEvent(nil), recent...)

	return metrics
}

// IdentifyThreats scans the last hour of events. An IP is suspicious when
// its event count strictly exceeds the threshold (10); attack patterns are
// surfaced when they recur more than 5 times. Flagged IPs are recorded in
// the threat intelligence aggregate.
func (m *Monitor) IdentifyThreats() ThreatAssessment {
	now := m.now()
	cutoff := now.Add(-time.Hour)

	var windowed []SecurityEvent
	for _, e := range m.events.Snapshot() {
		if !e.Timestamp.Before(cutoff) {
			windowed = append(windowed, e)
		}
	}

	assessment := ThreatAssessment{}

	for _, entry := range topCounts(windowed, func(e SecurityEvent) string { return e.IP }, 0) {
		if entry.Count > m.ipThreshold {
			assessment.SuspiciousIPs = append(assessment.SuspiciousIPs, entry)
			m.intel.MarkSuspicious(entry.Key)
		}
	}

	patternCounts := make(map[string]int)
	patternFirst := make(map[string]int)
	for i, e := range windowed {
		name := classifyMessage(e.Message)
		if name == "" {
			continue
		}
		if _, seen := patternCounts[name]; !seen {
			patternFirst[name] = i
		}
		patternCounts[name]++
	}
	for name, count := range patternCounts {
		if count > patternRecurThreshold {
			assessment.AttackPatterns = append(assessment.AttackPatterns, CountEntry{Key: name, Count: count})
		}
	}
	sort.Slice(assessment.AttackPatterns, func(i, j int) bool {
		a, b := assessment.AttackPatterns[i], assessment.AttackPatterns[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return patternFirst[a.Key] < patternFirst[b.Key]
	})

	assessment.Recommendations = m.recommend(windowed, assessment)
	return assessment
}

func (m *Monitor) recommend(windowed []SecurityEvent, assessment ThreatAssessment) []string {
	var recs []string

	rateLimitEvents := 0
	critical := 0
	invalidInput := 0
	for _, e := range windowed {
		switch e.Type {
		case EventRateLimit:
			rateLimitEvents++
		case EventInvalidInput:
			invalidInput++
		}
		if e.Severity == SeverityCritical {
			critical++
		}
	}

	if rateLimitEvents > 50 {
		recs = append(recs, "High rate-limit rejection volume: consider tightening per-route limits or blocking repeat offenders.")
	}
	if len(assessment.SuspiciousIPs) > 0 {
		recs = append(recs, "Suspicious IPs detected: consider blocking them at the edge.")
	}
	if len(assessment.AttackPatterns) > 0 {
		recs = append(recs, "Recurring attack patterns detected: review validation rules and downstream query discipline.")
	}
	if critical > 0 {
		recs = append(recs, "Critical events present: investigate immediately.")
	}
	if invalidInput > 100 {
		recs = append(recs, "Validation rejections are unusually high: check for a probing campaign or an over-strict rule.")
	}
	if len(recs) == 0 {
		recs = append(recs, "No anomalies above thresholds; no action required.")
	}
	return recs
}

// Report renders a deterministic operator-facing text report of the current
// metrics and threat assessment.
func (m *Monitor) Report() string {
	metrics := m.Metrics(24 * time.Hour)
	threats := m.IdentifyThreats()

	var b strings.Builder
	b.WriteString("SECURITY REPORT\n")
	b.WriteString("===============\n")
	fmt.Fprintf(&b, "Generated: %s\n", metrics.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Window: last %.0f hours\n\n", metrics.WindowHours)

	fmt.Fprintf(&b, "Total events: %d\n\n", metrics.Total)

	b.WriteString("Events by type:\n")
	for _, t := range []EventType{EventInvalidInput, EventBlockedRequest, EventRateLimit, EventSuspiciousActivity} {
		fmt.Fprintf(&b, "  %-20s %d\n", string(t), metrics.ByType[t])
	}
	b.WriteString("\nEvents by severity:\n")
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		fmt.Fprintf(&b, "  %-20s %d\n", string(s), metrics.BySeverity[s])
	}

	b.WriteString("\nTop IPs:\n")
	for _, e := range metrics.TopIPs {
		fmt.Fprintf(&b, "  %-20s %d\n", e.Key, e.Count)
	}
	b.WriteString("\nTop endpoints:\n")
	for _, e := range metrics.TopEndpoints {
		fmt.Fprintf(&b, "  %-20s %d\n", e.Key, e.Count)
	}

	b.WriteString("\nThreat assessment (last hour):\n")
	if len(threats.SuspiciousIPs) == 0 {
		b.WriteString("  No suspicious IPs.\n")
	}
	for _, e := range threats.SuspiciousIPs {
		fmt.Fprintf(&b, "  suspicious IP %-15s %d events\n", e.Key, e.Count)
	}
	for _, e := range threats.AttackPatterns {
		fmt.Fprintf(&b, "  pattern %-28s %d occurrences\n", e.Key, e.Count)
	}

	b.WriteString("\nRecommendations:\n")
	for _, r := range threats.Recommendations {
		fmt.Fprintf(&b, "  - %s\n", r)
	}

	return b.String()
}

// alert is the webhook payload.
type alert struct {
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// SendAlerts runs the threat identification and, when thresholds are
// exceeded, emits an alert locally and (best-effort) to the webhook. A
// failed delivery is logged and dropped until the next cycle; it never
// propagates to request handling.
func (m *Monitor) SendAlerts(ctx context.Context) {
	threats := m.IdentifyThreats()

	now := m.now()
	cutoff := now.Add(-5 * time.Minute)
	highCritical := 0
	for _, e := range m.events.Snapshot() {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if e.Severity == SeverityHigh || e.Severity == SeverityCritical {
			highCritical++
		}
	}

	if len(threats.SuspiciousIPs) <= alertSuspiciousIPs &&
		len(threats.AttackPatterns) <= alertAttackPatterns &&
		highCritical <= alertHighCriticalCount {
		return
	}

	a := alert{
		Severity:  "high",
		Message:   "Security thresholds exceeded",
		Timestamp: now,
		Metadata: map[string]any{
			"suspiciousIPs":      threats.SuspiciousIPs,
			"attackPatterns":     threats.AttackPatterns,
			"highCriticalEvents": highCritical,
			"recommendations":    threats.Recommendations,
		},
	}

	m.log.Warn("security alert",
		"suspicious_ips", len(threats.SuspiciousIPs),
		"attack_patterns", len(threats.AttackPatterns),
		"high_critical_5m", highCritical,
	)

	if m.webhookURL == "" || !m.alertLimiter.Allow() {
		return
	}

	if err := m.postWebhook(ctx, a); err != nil {
		m.log.LogError(err, "alert delivery failed", "code", "ALERT_DELIVERY_FAILED", "webhook", m.webhookURL)
	}
}

func (m *Monitor) postWebhook(ctx context.Context, a alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Start launches the recurring alert scan. It runs until Stop is called.
func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							m.log.Error("monitor scan panicked", "error", fmt.Sprintf("%v", r))
						}
					}()
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					m.SendAlerts(ctx)
				}()
			case <-m.stop:
				return
			}
		}
	}()
	m.log.Info("security monitor started", "interval", m.interval.String())
}

// Stop halts the recurring alert scan.
func (m *Monitor) Stop() {
	close(m.stop)
}

// topCounts counts events per key and returns the top n entries by count,
// ties broken by first-seen order. n <= 0 returns all entries.
func topCounts(events []SecurityEvent, keyFn func(SecurityEvent) string, n int) []CountEntry {
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, e := range events {
		key := keyFn(e)
		if key == "" {
			continue
		}
		if _, seen := counts[key]; !seen {
			first[key] = i
		}
		counts[key]++
	}

	entries := make([]CountEntry, 0, len(counts))
	for key, count := range counts {
		entries = append(entries, CountEntry{Key: key, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return first[entries[i].Key] < first[entries[j].Key]
	})

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func classifyMessage(message string) string {
	lower := strings.ToLower(message)
	for _, p := range messagePatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.name
			}
		}
	}
	return ""
}
