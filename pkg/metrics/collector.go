// Package metrics provides server-wide operational metrics aggregation.
// A single Collector is constructed at startup and passed explicitly to
// every component that records metrics; there is no package-level singleton.
package metrics

import (
	"maps"
	"sync"
	"time"
)

// Session event types recognized by RecordSessionEvent.
const (
	// EventSessionStarted increments the active session gauge.
	EventSessionStarted = "session_started"

	// EventSessionClosed decrements the active session gauge.
	EventSessionClosed = "session_closed"

	// EventSessionTerminated decrements the active session gauge. It is
	// recorded when a session is forcibly closed (missed heartbeats, idle
	// timeout) rather than by client request.
	EventSessionTerminated = "session_terminated"
)

// Collector aggregates counters, gauges, and duration samples under a single
// lock. All mutating operations are serialized; reads take a consistent
// snapshot under the same lock.
type Collector struct {
	mu                 sync.Mutex
	messagesProcessed  int64
	operations         map[string]int64
	errors             map[string]int64
	messageDurationsMS []float64
	opDurationsMS      []float64
	activeSessions     int64
	sessionEvents      map[string]int64
	lastHealthCheck    time.Time
	startTime          time.Time
}

// Snapshot is a consistent point-in-time view of collected metrics.
type Snapshot struct {
	MessagesProcessed    int64            `json:"messages_processed"`
	Operations           map[string]int64 `json:"operations"`
	Errors               map[string]int64 `json:"errors"`
	ActiveSessions       int64            `json:"active_sessions"`
	SessionEvents        map[string]int64 `json:"session_events"`
	AvgMessageDurationMS float64          `json:"avg_message_duration_ms"`
	AvgOperationDuration float64          `json:"avg_operation_duration_ms"`
	UptimeSec            float64          `json:"uptime_sec"`
}

// HealthStatus is a lightweight liveness summary.
type HealthStatus struct {
	UptimeSec         float64   `json:"uptime_sec"`
	ActiveSessions    int64     `json:"active_sessions"`
	MessagesProcessed int64     `json:"messages_processed"`
	ErrorCount        int64     `json:"error_count"`
	LastHealthCheck   time.Time `json:"last_health_check"`
}

// NewCollector creates a Collector with the start timestamp set to now.
func NewCollector() *Collector {
	return &Collector{
		operations:    make(map[string]int64),
		errors:        make(map[string]int64),
		sessionEvents: make(map[string]int64),
		startTime:     time.Now(),
	}
}

// RecordMessage records one processed protocol message of the given type.
func (c *Collector) RecordMessage(messageType string, durationMS float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messagesProcessed++
	c.operations[messageType]++
	c.messageDurationsMS = append(c.messageDurationsMS, durationMS)
}

// RecordOperation records a tool or protocol operation outcome. A negative
// durationMS means no duration was observed.
func (c *Collector) RecordOperation(operationType string, success bool, durationMS float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations[operationType]++
	if !success {
		c.errors[operationType]++
	}
	if durationMS >= 0 {
		c.opDurationsMS = append(c.opDurationsMS, durationMS)
	}
}

// RecordError records an error of the given type.
func (c *Collector) RecordError(errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors[errorType]++
}

// RecordSessionEvent records a session lifecycle event and adjusts the
// active-session gauge. The gauge is clamped at zero: recording a close
// without a matching start never drives it negative.
func (c *Collector) RecordSessionEvent(eventType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionEvents[eventType]++
	switch eventType {
	case EventSessionStarted:
		c.activeSessions++
	case EventSessionClosed, EventSessionTerminated:
		if c.activeSessions > 0 {
			c.activeSessions--
		}
	}
}

// Snapshot returns a consistent snapshot including computed averages.
// Calling Snapshot twice with no intervening records yields equal results.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		MessagesProcessed:    c.messagesProcessed,
		Operations:           maps.Clone(c.operations),
		Errors:               maps.Clone(c.errors),
		ActiveSessions:       c.activeSessions,
		SessionEvents:        maps.Clone(c.sessionEvents),
		AvgMessageDurationMS: mean(c.messageDurationsMS),
		AvgOperationDuration: mean(c.opDurationsMS),
		UptimeSec:            time.Since(c.startTime).Seconds(),
	}
}

// HealthStatus returns the liveness summary and stamps the last-check time.
func (c *Collector) HealthStatus() HealthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errorCount int64
	for _, n := range c.errors {
		errorCount += n
	}

	c.lastHealthCheck = time.Now()
	return HealthStatus{
		UptimeSec:         time.Since(c.startTime).Seconds(),
		ActiveSessions:    c.activeSessions,
		MessagesProcessed: c.messagesProcessed,
		ErrorCount:        errorCount,
		LastHealthCheck:   c.lastHealthCheck,
	}
}

// ActiveSessions returns the current active session gauge.
func (c *Collector) ActiveSessions() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeSessions
}

// Reset returns every counter to zero and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messagesProcessed = 0
	c.operations = make(map[string]int64)
	c.errors = make(map[string]int64)
	c.messageDurationsMS = nil
	c.opDurationsMS = nil
	c.activeSessions = 0
	c.sessionEvents = make(map[string]int64)
	c.lastHealthCheck = time.Time{}
	c.startTime = time.Now()
}

// mean returns the arithmetic mean of samples, or 0 for an empty slice.
func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
