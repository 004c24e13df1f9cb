// Package session provides session lifecycle management for the MCP git
// server. A Session tracks a single client's logical connection across many
// protocol messages; the Manager owns the registry of live sessions and the
// HeartbeatManager monitors their liveness.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is a session lifecycle state.
type State string

const (
	// StateActive is the initial state of a created session.
	StateActive State = "ACTIVE"

	// StatePaused suspends the idle countdown until the session resumes.
	StatePaused State = "PAUSED"

	// StateClosed is terminal; no further transitions are permitted.
	StateClosed State = "CLOSED"
)

// Close reasons recorded on session teardown.
const (
	// CloseReasonIdleTimeout means no liveness-refreshing activity occurred
	// within the idle timeout.
	CloseReasonIdleTimeout = "idle_timeout"

	// CloseReasonHeartbeatTimeout means the heartbeat age exceeded the
	// session's heartbeat timeout.
	CloseReasonHeartbeatTimeout = "heartbeat_timeout"

	// CloseReasonMissedHeartbeat means the heartbeat monitor saw too many
	// consecutive check intervals without a heartbeat.
	CloseReasonMissedHeartbeat = "missed_heartbeat"

	// CloseReasonServerShutdown means the server is shutting down.
	CloseReasonServerShutdown = "server_shutdown"
)

var (
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrNotActive is returned when pausing a session that is not active.
	ErrNotActive = errors.New("session is not active")

	// ErrNotPaused is returned when resuming a session that is not paused.
	ErrNotPaused = errors.New("session is not paused")
)

// Watchdog poll bounds. The watchdog ticks at a fraction of the idle timeout
// so short timeouts are detected promptly without busy-polling long ones.
const (
	minWatchInterval = 10 * time.Millisecond
	maxWatchInterval = time.Second
)

// Session is a single client's state machine. Internal fields are mutated
// only while holding the session's own lock; per-session operations are
// serialized relative to each other, but different sessions proceed
// independently.
type Session struct {
	mu sync.Mutex

	id               string
	user             string
	state            State
	createdAt        time.Time
	lastActivity     time.Time
	lastHeartbeatAt  time.Time
	heartbeatCount   int64
	messageCount     int64
	idleTimeout      time.Duration
	heartbeatTimeout time.Duration

	watchCancel context.CancelFunc
	watchDone   chan struct{}

	// onExpire is invoked (outside the lock) when the watchdog closes the
	// session. Set by the Manager to remove the session from its registry.
	onExpire func(id, reason string)
}

// Info is an externally safe snapshot of a session.
type Info struct {
	ID              string        `json:"session_id"`
	User            string        `json:"user,omitempty"`
	State           State         `json:"state"`
	CreatedAt       time.Time     `json:"created_at"`
	LastHeartbeatAt time.Time     `json:"last_heartbeat_at"`
	HeartbeatCount  int64         `json:"heartbeat_count"`
	MessageCount    int64         `json:"message_count"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
}

// newSession constructs an ACTIVE session. The watchdog is started
// separately via startWatchdog.
func newSession(id, user string, idleTimeout, heartbeatTimeout time.Duration) *Session {
	now := time.Now()
	return &Session{
		id:               id,
		user:             user,
		state:            StateActive,
		createdAt:        now,
		lastActivity:     now,
		lastHeartbeatAt:  now,
		idleTimeout:      idleTimeout,
		heartbeatTimeout: heartbeatTimeout,
	}
}

// ID returns the immutable session identifier.
func (s *Session) ID() string { return s.id }

// User returns the optional user label.
func (s *Session) User() string { return s.user }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session's observable fields.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:              s.id,
		User:            s.user,
		State:           s.state,
		CreatedAt:       s.createdAt,
		LastHeartbeatAt: s.lastHeartbeatAt,
		HeartbeatCount:  s.heartbeatCount,
		MessageCount:    s.messageCount,
		IdleTimeout:     s.idleTimeout,
	}
}

// Pause transitions ACTIVE to PAUSED. The idle countdown is suspended while
// paused and restarts from zero on Resume.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.state != StateActive {
		return fmt.Errorf("pausing session %s: %w", s.id, ErrNotActive)
	}
	s.state = StatePaused
	slog.Info("session paused", "session_id", s.id)
	return nil
}

// Resume transitions PAUSED to ACTIVE and restarts the idle countdown.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.state != StatePaused {
		return fmt.Errorf("resuming session %s: %w", s.id, ErrNotPaused)
	}
	s.state = StateActive
	s.lastActivity = time.Now()
	slog.Info("session resumed", "session_id", s.id)
	return nil
}

// HandleHeartbeat records a client heartbeat. Valid while not CLOSED; while
// ACTIVE it also resets the idle countdown.
func (s *Session) HandleHeartbeat() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}
	now := time.Now()
	s.lastHeartbeatAt = now
	s.heartbeatCount++
	if s.state == StateActive {
		s.lastActivity = now
	}
	return nil
}

// RecordMessage counts a protocol message handled within this session and
// refreshes liveness while ACTIVE.
func (s *Session) RecordMessage() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.messageCount++
	if s.state == StateActive {
		s.lastActivity = time.Now()
	}
	return nil
}

// Close transitions to CLOSED from any non-terminal state, cancels the idle
// watchdog, and waits for it to exit. Closing twice has no further effect.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	cancel := s.watchCancel
	done := s.watchDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	slog.Info("session closed", "session_id", s.id, "reason", reason)
}

// startWatchdog launches the idle watchdog goroutine. onExpire runs when the
// watchdog itself closes the session.
func (s *Session) startWatchdog(onExpire func(id, reason string)) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.onExpire = onExpire
	s.watchCancel = cancel
	s.watchDone = make(chan struct{})
	done := s.watchDone
	s.mu.Unlock()

	go s.watchdog(ctx, done)
}

// watchInterval derives the watchdog poll period from the idle timeout.
func (s *Session) watchInterval() time.Duration {
	interval := s.idleTimeout / 4
	if interval < minWatchInterval {
		interval = minWatchInterval
	}
	if interval > maxWatchInterval {
		interval = maxWatchInterval
	}
	return interval
}

// watchdog polls for idle and heartbeat expiry. It exits when the session is
// explicitly closed (context cancelled) or after closing the session itself.
func (s *Session) watchdog(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.watchInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reason, expired := s.checkExpiry(); expired {
				if s.onExpire != nil {
					s.onExpire(s.id, reason)
				}
				return
			}
		}
	}
}

// checkExpiry transitions the session to CLOSED if its idle or heartbeat
// deadline has passed. The countdown only runs while ACTIVE; a paused
// session never expires.
func (s *Session) checkExpiry() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return "", false
	}
	now := time.Now()
	if now.Sub(s.lastActivity) >= s.idleTimeout {
		s.state = StateClosed
		slog.Info("session idle timeout", "session_id", s.id, "idle_timeout", s.idleTimeout)
		return CloseReasonIdleTimeout, true
	}
	if s.heartbeatTimeout > 0 && now.Sub(s.lastHeartbeatAt) >= s.heartbeatTimeout {
		s.state = StateClosed
		slog.Info("session heartbeat timeout", "session_id", s.id, "heartbeat_timeout", s.heartbeatTimeout)
		return CloseReasonHeartbeatTimeout, true
	}
	return "", false
}
