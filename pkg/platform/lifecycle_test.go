package platform

import (
	"context"
	"errors"
	"testing"
)

func TestLifecycle_StartAndStop(t *testing.T) {
	lc := NewLifecycle()

	var started, stopped bool
	lc.Hook("component",
		func(_ context.Context) error {
			started = true
			return nil
		},
		func(_ context.Context) error {
			stopped = true
			return nil
		})

	if err := lc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !started {
		t.Error("start hook not called")
	}
	if !lc.IsStarted() {
		t.Error("IsStarted() = false after Start()")
	}

	if err := lc.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !stopped {
		t.Error("stop hook not called")
	}
	if lc.IsStarted() {
		t.Error("IsStarted() = true after Stop()")
	}
}

func TestLifecycle_StartAlreadyStarted(t *testing.T) {
	lc := NewLifecycle()
	_ = lc.Start(context.Background())

	if err := lc.Start(context.Background()); err == nil {
		t.Error("Start() expected error for already started")
	}
}

func TestLifecycle_StopWithoutStartReleasesResources(t *testing.T) {
	lc := NewLifecycle()

	var stopped bool
	lc.Hook("resource", nil, func(_ context.Context) error {
		stopped = true
		return nil
	})

	if err := lc.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !stopped {
		t.Error("stop hook must run even when Start was never called")
	}
}

func TestLifecycle_SecondStopIsNoop(t *testing.T) {
	lc := NewLifecycle()

	stops := 0
	lc.Hook("resource", nil, func(_ context.Context) error {
		stops++
		return nil
	})

	_ = lc.Start(context.Background())
	_ = lc.Stop(context.Background())
	_ = lc.Stop(context.Background())

	if stops != 1 {
		t.Errorf("stop hook ran %d times, want 1", stops)
	}
}

func TestLifecycle_StartRollbackOnError(t *testing.T) {
	lc := NewLifecycle()

	var calls []string
	lc.Hook("first",
		func(_ context.Context) error {
			calls = append(calls, "start first")
			return nil
		},
		func(_ context.Context) error {
			calls = append(calls, "stop first")
			return nil
		})
	lc.Hook("second",
		func(_ context.Context) error {
			calls = append(calls, "start second")
			return errors.New("second failed")
		},
		func(_ context.Context) error {
			calls = append(calls, "stop second")
			return nil
		})

	if err := lc.Start(context.Background()); err == nil {
		t.Error("Start() expected error")
	}

	// The first hook's stop must run to roll back the partial start.
	rolledBack := false
	for _, c := range calls {
		if c == "stop first" {
			rolledBack = true
		}
		if c == "stop second" {
			t.Error("failed hook's own stop must not run")
		}
	}
	if !rolledBack {
		t.Error("expected rollback to stop the first hook")
	}
	if lc.IsStarted() {
		t.Error("lifecycle should not be started after rollback")
	}
}

func TestLifecycle_StopInReverseOrder(t *testing.T) {
	lc := NewLifecycle()

	var order []int
	for i := 1; i <= 3; i++ {
		n := i
		lc.Hook("component", nil, func(_ context.Context) error {
			order = append(order, n)
			return nil
		})
	}

	_ = lc.Start(context.Background())
	_ = lc.Stop(context.Background())

	expected := []int{3, 2, 1}
	if len(order) != len(expected) {
		t.Fatalf("order length = %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("order[%d] = %d, want %d", i, order[i], v)
		}
	}
}

type mockCloser struct {
	closed bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return nil
}

func TestLifecycle_RegisterCloser(t *testing.T) {
	lc := NewLifecycle()
	closer := &mockCloser{}

	lc.RegisterCloser("resource", closer)
	_ = lc.Start(context.Background())
	_ = lc.Stop(context.Background())

	if !closer.closed {
		t.Error("closer not closed")
	}
}

func TestLifecycle_StopWithError(t *testing.T) {
	lc := NewLifecycle()

	lc.Hook("first", nil, func(_ context.Context) error {
		return errors.New("first stop failed")
	})

	var secondStopped bool
	lc.Hook("second", nil, func(_ context.Context) error {
		secondStopped = true
		return nil
	})

	_ = lc.Start(context.Background())
	err := lc.Stop(context.Background())
	if err == nil {
		t.Fatal("Stop() expected error when a hook fails")
	}
	if !secondStopped {
		t.Error("remaining hooks must still run when one fails")
	}
}
