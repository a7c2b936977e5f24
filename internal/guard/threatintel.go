package guard

import (
	"sort"
	"sync"
	"time"
)

// ThreatIntelligence is the process-wide mutable aggregate of what is
// currently considered hostile: IPs flagged by the monitor, operator-blocked
// patterns, and the known attack signature names. Created at process start,
// reset only by restart or explicit admin action.
type ThreatIntelligence struct {
	mu              sync.RWMutex
	suspiciousIPs   map[string]struct{}
	blockedPatterns map[string]struct{}
	knownSignatures map[string]struct{}
	lastUpdated     time.Time
}

// NewThreatIntelligence creates an empty aggregate seeded with the
// sanitizer's signature names.
func NewThreatIntelligence() *ThreatIntelligence {
	known := make(map[string]struct{}, len(attackSignatures))
	for _, sig := range attackSignatures {
		known[sig.name] = struct{}{}
	}
	return &ThreatIntelligence{
		suspiciousIPs:   make(map[string]struct{}),
		blockedPatterns: make(map[string]struct{}),
		knownSignatures: known,
		lastUpdated:     time.Now(),
	}
}

// MarkSuspicious flags an IP.
func (t *ThreatIntelligence) MarkSuspicious(ip string) {
	if ip == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspiciousIPs[ip] = struct{}{}
	t.lastUpdated = time.Now()
}

// ClearSuspicious removes the flag from an IP (admin action).
func (t *ThreatIntelligence) ClearSuspicious(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.suspiciousIPs, ip)
	t.lastUpdated = time.Now()
}

// IsSuspicious reports whether an IP is currently flagged.
func (t *ThreatIntelligence) IsSuspicious(ip string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.suspiciousIPs[ip]
	return ok
}

// BlockPattern records an operator-blocked pattern name.
func (t *ThreatIntelligence) BlockPattern(name string) {
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockedPatterns[name] = struct{}{}
	t.lastUpdated = time.Now()
}

// SuspiciousIPs returns the flagged IPs, sorted for deterministic output.
func (t *ThreatIntelligence) SuspiciousIPs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.suspiciousIPs))
	for ip := range t.suspiciousIPs {
		out = append(out, ip)
	}
	sort.Strings(out)
	return out
}

// KnownSignatures returns the known attack signature names, sorted.
func (t *ThreatIntelligence) KnownSignatures() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.knownSignatures))
	for name := range t.knownSignatures {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LastUpdated returns the time of the most recent mutation.
func (t *ThreatIntelligence) LastUpdated() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastUpdated
}
