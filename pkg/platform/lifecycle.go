package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// hook pairs a component's startup and shutdown steps so they stay in sync:
// whatever Start brought up, Stop and a failed Start tear down. Either step
// may be nil when a component only participates in one phase.
type hook struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

// Lifecycle sequences the platform's components: the session registry, the
// heartbeat monitor, and the session archive. Hooks start in registration
// order and stop in reverse, so a component never outlives what it depends on.
type Lifecycle struct {
	mu      sync.Mutex
	hooks   []hook
	started bool
	stopped bool
}

// NewLifecycle creates an empty lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Hook registers a named component.
func (l *Lifecycle) Hook(name string, start, stop func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook{name: name, start: start, stop: stop})
}

// Start brings components up in registration order. When a hook fails, the
// components already running are stopped in reverse before the error returns.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return fmt.Errorf("lifecycle already started")
	}

	for i, h := range l.hooks {
		if h.start == nil {
			continue
		}
		if err := h.start(ctx); err != nil {
			l.unwind(ctx, i)
			return fmt.Errorf("starting %s: %w", h.name, err)
		}
	}

	l.started = true
	l.stopped = false
	return nil
}

// unwind stops the hooks before index failedAt, newest first.
func (l *Lifecycle) unwind(ctx context.Context, failedAt int) {
	for i := failedAt - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.stop == nil {
			continue
		}
		if err := h.stop(ctx); err != nil {
			slog.Warn("component stop failed during start rollback",
				"component", h.name, "error", err)
		}
	}
}

// Stop tears components down in reverse registration order. Resources held
// by hooks exist from registration, so Stop runs them even when Start was
// never called. Every stop runs even when earlier ones fail; a second Stop
// is a no-op.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return nil
	}

	var errs []error
	for i := len(l.hooks) - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.stop == nil {
			continue
		}
		if err := h.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", h.name, err))
		}
	}

	l.started = false
	l.stopped = true
	return errors.Join(errs...)
}

// IsStarted reports whether Start has completed without a later Stop.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

// Closer is a resource released on shutdown.
type Closer interface {
	Close() error
}

// RegisterCloser ties a resource's Close into shutdown as a stop-only hook.
func (l *Lifecycle) RegisterCloser(name string, c Closer) {
	l.Hook(name, nil, func(context.Context) error {
		return c.Close()
	})
}
