package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Heartbeat monitoring defaults.
const (
	// DefaultHeartbeatInterval is the poll period of the heartbeat loop.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultMissedThreshold is the number of consecutive check intervals
	// without a heartbeat before a session is forcibly closed.
	DefaultMissedThreshold = 3
)

// HeartbeatConfig configures the heartbeat monitor.
type HeartbeatConfig struct {
	Interval        time.Duration `yaml:"interval"`
	MissedThreshold int           `yaml:"missed_threshold"`
}

// HeartbeatManager runs a background loop that polls session liveness and
// forces closure on missed heartbeats. Its tracking maps hold entries only
// for sessions currently registered with the Manager; Forget removes them
// when a session closes for any reason.
type HeartbeatManager struct {
	manager         *Manager
	interval        time.Duration
	missedThreshold int

	mu       sync.Mutex
	lastSeen map[string]time.Time
	missed   map[string]int
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHeartbeatManager creates a heartbeat monitor bound to the given session
// manager. Zero config values fall back to package defaults.
func NewHeartbeatManager(manager *Manager, cfg HeartbeatConfig) *HeartbeatManager {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultHeartbeatInterval
	}
	if cfg.MissedThreshold == 0 {
		cfg.MissedThreshold = DefaultMissedThreshold
	}
	h := &HeartbeatManager{
		manager:         manager,
		interval:        cfg.Interval,
		missedThreshold: cfg.MissedThreshold,
		lastSeen:        make(map[string]time.Time),
		missed:          make(map[string]int),
	}
	manager.SetHeartbeatManager(h)
	return h
}

// Start launches the polling loop. Calling Start on a running monitor is a
// no-op.
func (h *HeartbeatManager) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	h.running = true

	go h.loop(ctx, h.done)
	slog.Info("heartbeat monitor started", "interval", h.interval, "missed_threshold", h.missedThreshold)
}

// Stop cancels the polling loop and waits for its current iteration to
// finish. No heartbeat checks occur after Stop returns. Safe to call on a
// stopped monitor.
func (h *HeartbeatManager) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	cancel := h.cancel
	done := h.done
	h.mu.Unlock()

	cancel()
	<-done
	slog.Info("heartbeat monitor stopped")
}

// RecordHeartbeat registers a client heartbeat for the session: the missed
// counter resets to zero and the last-seen timestamp updates. Idempotent,
// and a no-op for sessions not registered with the Manager.
func (h *HeartbeatManager) RecordHeartbeat(id string) {
	sess, ok := h.manager.Get(id)
	if !ok {
		return
	}
	if err := sess.HandleHeartbeat(); err != nil {
		return
	}

	h.mu.Lock()
	h.lastSeen[id] = time.Now()
	h.missed[id] = 0
	h.mu.Unlock()
}

// LastHeartbeat returns the last recorded heartbeat time for a session.
func (h *HeartbeatManager) LastHeartbeat(id string) (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.lastSeen[id]
	return t, ok
}

// Forget drops tracking state for a session. Called by the Manager whenever
// a session leaves the registry.
func (h *HeartbeatManager) Forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastSeen, id)
	delete(h.missed, id)
}

// loop drives periodic liveness checks until cancelled.
func (h *HeartbeatManager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.checkSessions()
		}
	}
}

// checkSessions increments missed counters for sessions without a heartbeat
// since the last tick and terminates those at the threshold.
func (h *HeartbeatManager) checkSessions() {
	now := time.Now()

	for id, sess := range h.manager.All() {
		h.mu.Lock()
		last, tracked := h.lastSeen[id]
		if !tracked {
			// Seed from the session's own bookkeeping so freshly created
			// sessions get a full interval before their first miss.
			last = sess.Snapshot().LastHeartbeatAt
			h.lastSeen[id] = last
		}
		if now.Sub(last) >= h.interval {
			h.missed[id]++
		} else {
			h.missed[id] = 0
		}
		missed := h.missed[id]
		h.mu.Unlock()

		if missed >= h.missedThreshold {
			slog.Warn("session missed heartbeats, closing",
				"session_id", id, "missed", missed, "threshold", h.missedThreshold)
			h.manager.Terminate(id, CloseReasonMissedHeartbeat)
		}
	}
}
