package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const persistTestIdleTimeout = time.Minute

func TestManager_SaveExcludesClosedSessions(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(persistTestIdleTimeout)
	defer m.Shutdown()

	_, err := m.Create("active-1", "")
	require.NoError(t, err)

	paused, err := m.Create("paused-1", "")
	require.NoError(t, err)
	require.NoError(t, paused.Pause())

	_, err = m.Create("closed-1", "")
	require.NoError(t, err)
	require.NoError(t, m.CloseSession("closed-1", "client_request"))

	require.NoError(t, m.Save(dir))

	data, err := os.ReadFile(filepath.Join(dir, SessionsFileName))
	require.NoError(t, err)

	var entries []PersistedSession
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)

	byID := make(map[string]State, len(entries))
	for _, e := range entries {
		byID[e.SessionID] = e.State
	}
	assert.Equal(t, StateActive, byID["active-1"])
	assert.Equal(t, StatePaused, byID["paused-1"])
	assert.NotContains(t, byID, "closed-1")
}

func TestManager_SaveNothingWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(persistTestIdleTimeout)
	defer m.Shutdown()

	require.NoError(t, m.Save(dir))

	_, err := os.Stat(filepath.Join(dir, SessionsFileName))
	assert.True(t, os.IsNotExist(err), "no file should be written without sessions")
}

func TestManager_RestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	src, _ := newTestManager(persistTestIdleTimeout)
	_, err := src.Create("active-1", "")
	require.NoError(t, err)
	paused, err := src.Create("paused-1", "")
	require.NoError(t, err)
	require.NoError(t, paused.Pause())

	require.NoError(t, src.Save(dir))
	src.Shutdown()

	dst, _ := newTestManager(persistTestIdleTimeout)
	defer dst.Shutdown()

	restored := dst.Restore(dir)
	assert.Equal(t, 2, restored)

	active, ok := dst.Get("active-1")
	require.True(t, ok)
	assert.Equal(t, StateActive, active.State())

	restoredPaused, ok := dst.Get("paused-1")
	require.True(t, ok)
	assert.Equal(t, StatePaused, restoredPaused.State())

	// The file is consumed on restore.
	_, err = os.Stat(filepath.Join(dir, SessionsFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_RestoreMissingFile(t *testing.T) {
	m, _ := newTestManager(persistTestIdleTimeout)
	defer m.Shutdown()

	assert.Equal(t, 0, m.Restore(t.TempDir()))
}

func TestManager_RestoreCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SessionsFileName), []byte("{not json"), 0o644))

	m, _ := newTestManager(persistTestIdleTimeout)
	defer m.Shutdown()

	assert.Equal(t, 0, m.Restore(dir), "corrupted file means no prior sessions")
	assert.Equal(t, 0, m.Count())
}

func TestManager_RestoreSkipsDuplicates(t *testing.T) {
	dir := t.TempDir()
	entries := []PersistedSession{
		{SessionID: "dup", State: StateActive},
		{SessionID: "dup", State: StateActive},
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, SessionsFileName), data, 0o644))

	m, _ := newTestManager(persistTestIdleTimeout)
	defer m.Shutdown()

	assert.Equal(t, 1, m.Restore(dir))
	assert.Equal(t, 1, m.Count())
}
