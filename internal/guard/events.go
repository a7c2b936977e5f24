package guard

import (
	"sync"
	"time"

	"ai-scam-shield-demo/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventType classifies a security event.
type EventType string

const (
	EventInvalidInput       EventType = "invalid_input"
	EventBlockedRequest     EventType = "blocked_request"
	EventRateLimit          EventType = "rate_limit"
	EventSuspiciousActivity EventType = "suspicious_activity"
)

// Severity grades a security event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is an immutable record of a rejected or suspicious request.
type SecurityEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	IP        string         `json:"ip"`
	UserAgent string         `json:"userAgent"`
	Endpoint  string         `json:"endpoint"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "security_events_total",
	Help: "Security events recorded by the request-defense layer.",
}, []string{"type", "severity"})

// EventLog is a bounded append-only log of security events. Once capacity is
// exceeded the oldest events are evicted, FIFO. Reads take a snapshot under
// a read lock so they never stall writers for long.
type EventLog struct {
	mu       sync.RWMutex
	events   []SecurityEvent
	capacity int
	log      *logger.Logger

	subMu   sync.Mutex
	subs    map[int]chan SecurityEvent
	nextSub int
}

// NewEventLog creates an event log holding at most capacity events.
func NewEventLog(capacity int, log *logger.Logger) *EventLog {
	if capacity <= 0 {
		capacity = 1000
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &EventLog{
		events:   make([]SecurityEvent, 0, capacity),
		capacity: capacity,
		log:      log.WithComponent("security"),
		subs:     make(map[int]chan SecurityEvent),
	}
}

// Log appends an event and emits a structured warning for immediate
// visibility. Missing ID and Timestamp fields are filled in.
func (l *EventLog) Log(event SecurityEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	l.mu.Unlock()

	eventsTotal.WithLabelValues(string(event.Type), string(event.Severity)).Inc()

	l.log.Warn("security event",
		"type", string(event.Type),
		"severity", string(event.Severity),
		"message", event.Message,
		"ip", event.IP,
		"endpoint", event.Endpoint,
	)

	l.notify(event)
}

// Events returns the most recent limit events in arrival order, newest last.
func (l *EventLog) Events(limit int) []SecurityEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.events) {
		limit = len(l.events)
	}
	out := make([]SecurityEvent, limit)
	copy(out, l.events[len(l.events)-limit:])
	return out
}

// Snapshot returns a copy of the full log in arrival order.
func (l *EventLog) Snapshot() []SecurityEvent {
	return l.Events(0)
}

// Len returns the current number of stored events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Subscribe registers a listener for new events. Slow listeners drop events
// rather than blocking the request path. The returned function cancels the
// subscription.
func (l *EventLog) Subscribe() (<-chan SecurityEvent, func()) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	id := l.nextSub
	l.nextSub++
	ch := make(chan SecurityEvent, 64)
	l.subs[id] = ch

	cancel := func() {
		l.subMu.Lock()
		defer l.subMu.Unlock()
		if sub, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (l *EventLog) notify(event SecurityEvent) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
