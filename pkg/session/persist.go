package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// PersistedSession is one entry of the graceful-shutdown session file.
// Only ACTIVE and PAUSED sessions are persisted; CLOSED sessions are
// excluded.
type PersistedSession struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
}

// SessionsFileName is the JSON file written under the data directory on
// graceful shutdown.
const SessionsFileName = "sessions.json"

// Save writes surviving sessions to dir/sessions.json. With no surviving
// sessions nothing is written.
func (m *Manager) Save(dir string) error {
	var entries []PersistedSession
	for _, sess := range m.All() {
		info := sess.Snapshot()
		if info.State == StateClosed {
			continue
		}
		entries = append(entries, PersistedSession{
			SessionID: info.ID,
			State:     info.State,
		})
	}
	if len(entries) == 0 {
		slog.Debug("no sessions to save")
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session data dir: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}

	path := filepath.Join(dir, SessionsFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing sessions file: %w", err)
	}

	slog.Info("saved sessions", "count", len(entries), "path", path)
	return nil
}

// Restore re-registers sessions from dir/sessions.json. A missing or
// corrupted file is treated as "no prior sessions", never fatal. The file is
// removed after a successful restore so stale state cannot be replayed.
func (m *Manager) Restore(dir string) int {
	path := filepath.Join(dir, SessionsFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("could not read sessions file", "path", path, "error", err)
		}
		return 0
	}

	var entries []PersistedSession
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("corrupted sessions file, starting fresh", "path", path, "error", err)
		return 0
	}

	restored := 0
	for _, entry := range entries {
		if entry.SessionID == "" {
			continue
		}
		sess, err := m.Create(entry.SessionID, "")
		if err != nil {
			slog.Warn("skipping session restore", "session_id", entry.SessionID, "error", err)
			continue
		}
		if entry.State == StatePaused {
			if err := sess.Pause(); err != nil {
				slog.Warn("could not pause restored session", "session_id", entry.SessionID, "error", err)
			}
		}
		restored++
	}

	if err := os.Remove(path); err != nil {
		slog.Warn("could not remove sessions file after restore", "path", path, "error", err)
	}

	slog.Info("restored sessions", "count", restored, "path", path)
	return restored
}
