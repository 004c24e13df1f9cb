package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/txn2/mcp-git-server/pkg/metrics"
)

// Default lifecycle timeouts, matching the server's protocol expectations.
const (
	// DefaultIdleTimeout closes sessions with no activity for 15 minutes.
	DefaultIdleTimeout = 15 * time.Minute

	// DefaultHeartbeatTimeout closes sessions whose heartbeat age exceeds
	// one minute.
	DefaultHeartbeatTimeout = time.Minute
)

var (
	// ErrDuplicateSession is returned when creating a session whose ID is
	// already registered.
	ErrDuplicateSession = errors.New("session already exists")

	// ErrSessionNotFound is returned for operations on unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
)

// ArchiveRecord captures the terminal state of a closed session for the
// optional session archive.
type ArchiveRecord struct {
	SessionID      string    `json:"session_id"`
	User           string    `json:"user,omitempty"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
	ClosedAt       time.Time `json:"closed_at"`
	HeartbeatCount int64     `json:"heartbeat_count"`
	MessageCount   int64     `json:"message_count"`
}

// Archiver persists terminal session records.
type Archiver interface {
	// Archive records a closed session.
	Archive(ctx context.Context, rec ArchiveRecord) error

	// Close releases archiver resources.
	Close() error
}

// ManagerConfig configures session lifecycle defaults.
type ManagerConfig struct {
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
}

// Manager owns the registry of live sessions. A session ID present in the
// registry implies state ACTIVE or PAUSED; closed sessions are removed, not
// retained.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	idleTimeout      time.Duration
	heartbeatTimeout time.Duration

	collector  *metrics.Collector
	heartbeats *HeartbeatManager
	archiver   Archiver
}

// NewManager creates a Manager with the given lifecycle defaults. A nil
// collector disables metrics recording. Zero timeouts fall back to the
// package defaults.
func NewManager(cfg ManagerConfig, collector *metrics.Collector) *Manager {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	return &Manager{
		sessions:         make(map[string]*Session),
		idleTimeout:      cfg.IdleTimeout,
		heartbeatTimeout: cfg.HeartbeatTimeout,
		collector:        collector,
	}
}

// SetHeartbeatManager attaches the heartbeat monitor so Shutdown can stop it
// and session removal can clear its tracking state.
func (m *Manager) SetHeartbeatManager(h *HeartbeatManager) {
	m.heartbeats = h
}

// SetArchiver attaches an optional archiver for closed-session records.
func (m *Manager) SetArchiver(a Archiver) {
	m.archiver = a
}

// Create registers a new ACTIVE session, starts its idle watchdog, and
// records a session_started event. It fails with ErrDuplicateSession if the
// ID is already registered.
func (m *Manager) Create(id, user string) (*Session, error) {
	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("creating session %s: %w", id, ErrDuplicateSession)
	}
	sess := newSession(id, user, m.idleTimeout, m.heartbeatTimeout)
	m.sessions[id] = sess
	m.mu.Unlock()

	sess.startWatchdog(m.expireSession)
	m.recordEvent(metrics.EventSessionStarted)
	slog.Info("session created", "session_id", id, "user", user)
	return sess, nil
}

// Get looks up a session by ID. It never creates.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// All returns a snapshot copy of the registry. Mutating the returned map
// does not affect the Manager's internal state.
func (m *Manager) All() map[string]*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*Session, len(m.sessions))
	for id, sess := range m.sessions {
		out[id] = sess
	}
	return out
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseSession closes a session at client request and removes it from the
// registry. Unknown IDs return ErrSessionNotFound.
func (m *Manager) CloseSession(id, reason string) error {
	sess, ok := m.remove(id)
	if !ok {
		return fmt.Errorf("closing session %s: %w", id, ErrSessionNotFound)
	}
	sess.Close(reason)
	m.finishRemoval(sess, reason, metrics.EventSessionClosed)
	return nil
}

// Terminate forcibly closes a session due to a liveness failure and removes
// it from the registry. It is a no-op for unknown IDs.
func (m *Manager) Terminate(id, reason string) {
	sess, ok := m.remove(id)
	if !ok {
		return
	}
	sess.Close(reason)
	m.finishRemoval(sess, reason, metrics.EventSessionTerminated)
}

// expireSession is the watchdog callback: the session has already
// transitioned to CLOSED, so only deregistration and accounting remain.
func (m *Manager) expireSession(id, reason string) {
	sess, ok := m.remove(id)
	if !ok {
		return
	}
	m.finishRemoval(sess, reason, metrics.EventSessionTerminated)
}

// remove deletes the session from the registry, returning it if present.
func (m *Manager) remove(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return sess, ok
}

// finishRemoval handles post-removal accounting: heartbeat tracking cleanup,
// metrics, and archiving.
func (m *Manager) finishRemoval(sess *Session, reason, event string) {
	if m.heartbeats != nil {
		m.heartbeats.Forget(sess.ID())
	}
	m.recordEvent(event)
	m.archive(sess, reason)
}

// archive persists a terminal session record without blocking the caller.
func (m *Manager) archive(sess *Session, reason string) {
	if m.archiver == nil {
		return
	}
	info := sess.Snapshot()
	rec := ArchiveRecord{
		SessionID:      info.ID,
		User:           info.User,
		Reason:         reason,
		CreatedAt:      info.CreatedAt,
		ClosedAt:       time.Now(),
		HeartbeatCount: info.HeartbeatCount,
		MessageCount:   info.MessageCount,
	}
	go func() {
		if err := m.archiver.Archive(context.Background(), rec); err != nil {
			slog.Warn("session archive failed", "session_id", rec.SessionID, "error", err)
		}
	}()
}

// recordEvent records a session event on the injected collector, if any.
func (m *Manager) recordEvent(event string) {
	if m.collector != nil {
		m.collector.RecordSessionEvent(event)
	}
}

// Shutdown closes every tracked session with reason server_shutdown, stops
// the heartbeat manager, and clears the registry. On return every session is
// CLOSED and the heartbeat loop has fully stopped. Safe to call when some
// sessions are already closed.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	remaining := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		remaining = append(remaining, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range remaining {
		sess.Close(CloseReasonServerShutdown)
		m.finishRemoval(sess, CloseReasonServerShutdown, metrics.EventSessionClosed)
	}

	if m.heartbeats != nil {
		m.heartbeats.Stop()
	}
	slog.Info("session manager shut down", "closed_sessions", len(remaining))
}
