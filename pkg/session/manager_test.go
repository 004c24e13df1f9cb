package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mgrTestIdleTimeout = 5 * time.Second

func TestManager_CreateAndGet(t *testing.T) {
	m, collector := newTestManager(mgrTestIdleTimeout)
	defer m.Shutdown()

	sess, err := m.Create("s1", "alice")
	require.NoError(t, err)
	require.NotNil(t, sess)

	got, ok := m.Get("s1")
	require.True(t, ok)
	assert.Same(t, sess, got)

	assert.Equal(t, int64(1), collector.ActiveSessions())
}

func TestManager_DuplicateCreate(t *testing.T) {
	m, _ := newTestManager(mgrTestIdleTimeout)
	defer m.Shutdown()

	_, err := m.Create("s1", "")
	require.NoError(t, err)

	_, err = m.Create("s1", "")
	require.ErrorIs(t, err, ErrDuplicateSession)
	assert.Equal(t, 1, m.Count())
}

func TestManager_GetUnknown(t *testing.T) {
	m, _ := newTestManager(mgrTestIdleTimeout)
	defer m.Shutdown()

	_, ok := m.Get("nope")
	assert.False(t, ok)
}

func TestManager_AllReturnsSnapshot(t *testing.T) {
	m, _ := newTestManager(mgrTestIdleTimeout)
	defer m.Shutdown()

	_, err := m.Create("s1", "")
	require.NoError(t, err)

	all := m.All()
	require.Len(t, all, 1)

	// Mutating the snapshot must not affect the registry.
	delete(all, "s1")
	assert.Equal(t, 1, m.Count())
}

func TestManager_CloseSessionRemovesFromRegistry(t *testing.T) {
	m, collector := newTestManager(mgrTestIdleTimeout)
	defer m.Shutdown()

	_, err := m.Create("s1", "")
	require.NoError(t, err)

	require.NoError(t, m.CloseSession("s1", "client_request"))
	_, ok := m.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, int64(0), collector.ActiveSessions())

	// Closing an unknown session reports not-found, never panics.
	require.ErrorIs(t, m.CloseSession("s1", "again"), ErrSessionNotFound)
}

func TestManager_TerminateUnknownIsNoop(t *testing.T) {
	m, _ := newTestManager(mgrTestIdleTimeout)
	defer m.Shutdown()

	m.Terminate("ghost", CloseReasonMissedHeartbeat)
	assert.Equal(t, 0, m.Count())
}

func TestManager_ConcurrentCreate(t *testing.T) {
	m, collector := newTestManager(mgrTestIdleTimeout)
	defer m.Shutdown()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Create(fmt.Sprintf("sess-%d", i), "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, n, m.Count())
	assert.Equal(t, int64(n), collector.ActiveSessions())
}

func TestManager_ShutdownClosesEverything(t *testing.T) {
	m, collector := newTestManager(mgrTestIdleTimeout)
	h := NewHeartbeatManager(m, HeartbeatConfig{Interval: 50 * time.Millisecond, MissedThreshold: 100})
	h.Start()

	var sessions []*Session
	for i := 0; i < 3; i++ {
		sess, err := m.Create(fmt.Sprintf("sess-%d", i), "")
		require.NoError(t, err)
		sessions = append(sessions, sess)
	}

	// One session is already closed; Shutdown must still succeed.
	require.NoError(t, m.CloseSession("sess-0", "client_request"))

	m.Shutdown()

	for _, sess := range sessions {
		assert.Equal(t, StateClosed, sess.State())
	}
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, int64(0), collector.ActiveSessions())

	// The heartbeat loop is stopped: starting a fresh session afterwards
	// must not be terminated by a stale check.
	sess, err := m.Create("late", "")
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateActive, sess.State())
	sess.Close("test")
}

type recordingArchiver struct {
	mu   sync.Mutex
	recs []ArchiveRecord
}

func (a *recordingArchiver) Archive(_ context.Context, rec ArchiveRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

func (a *recordingArchiver) Close() error { return nil }

func (a *recordingArchiver) records() []ArchiveRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ArchiveRecord, len(a.recs))
	copy(out, a.recs)
	return out
}

func TestManager_ArchivesClosedSessions(t *testing.T) {
	m, _ := newTestManager(mgrTestIdleTimeout)
	defer m.Shutdown()

	archiver := &recordingArchiver{}
	m.SetArchiver(archiver)

	sess, err := m.Create("s1", "alice")
	require.NoError(t, err)
	require.NoError(t, sess.HandleHeartbeat())

	require.NoError(t, m.CloseSession("s1", "client_request"))

	require.Eventually(t, func() bool {
		return len(archiver.records()) == 1
	}, time.Second, 10*time.Millisecond)

	rec := archiver.records()[0]
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, "alice", rec.User)
	assert.Equal(t, "client_request", rec.Reason)
	assert.Equal(t, int64(1), rec.HeartbeatCount)
}
