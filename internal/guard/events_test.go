package guard

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLogEvictsOldestAtCapacity(t *testing.T) {
	log := NewEventLog(5, nil)

	for i := 0; i < 6; i++ {
		log.Log(SecurityEvent{
			Type:     EventInvalidInput,
			Severity: SeverityLow,
			Message:  fmt.Sprintf("event-%d", i),
			IP:       "10.0.0.1",
		})
	}

	assert.Equal(t, 5, log.Len())

	events := log.Snapshot()
	require.Len(t, events, 5)
	assert.Equal(t, "event-1", events[0].Message, "oldest event must be evicted first")
	assert.Equal(t, "event-5", events[4].Message)
}

func TestEventLogFillsIDAndTimestamp(t *testing.T) {
	log := NewEventLog(10, nil)
	log.Log(SecurityEvent{Type: EventRateLimit, Severity: SeverityMedium, Message: "m"})

	events := log.Snapshot()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEventLogPreservesExplicitFields(t *testing.T) {
	log := NewEventLog(10, nil)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	log.Log(SecurityEvent{ID: "fixed", Timestamp: ts, Type: EventBlockedRequest, Severity: SeverityHigh})

	events := log.Snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "fixed", events[0].ID)
	assert.Equal(t, ts, events[0].Timestamp)
}

func TestEventLogEventsLimit(t *testing.T) {
	log := NewEventLog(10, nil)
	for i := 0; i < 4; i++ {
		log.Log(SecurityEvent{Type: EventInvalidInput, Severity: SeverityLow, Message: fmt.Sprintf("event-%d", i)})
	}

	recent := log.Events(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "event-2", recent[0].Message)
	assert.Equal(t, "event-3", recent[1].Message)

	// A limit beyond the stored count returns everything.
	assert.Len(t, log.Events(100), 4)
}

func TestEventLogSubscribe(t *testing.T) {
	log := NewEventLog(10, nil)
	ch, cancel := log.Subscribe()
	defer cancel()

	log.Log(SecurityEvent{Type: EventSuspiciousActivity, Severity: SeverityHigh, Message: "probe"})

	select {
	case e := <-ch:
		assert.Equal(t, "probe", e.Message)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the event")
	}
}

func TestEventLogSubscribeCancel(t *testing.T) {
	log := NewEventLog(10, nil)
	ch, cancel := log.Subscribe()
	cancel()

	// Logging after cancel must not panic on the closed channel.
	log.Log(SecurityEvent{Type: EventRateLimit, Severity: SeverityMedium, Message: "after cancel"})

	_, open := <-ch
	assert.False(t, open)
}
