package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// lifecycle starts gateway components in registration order and stops them
// in reverse.
type lifecycle struct {
	mu      sync.Mutex
	starts  []func(context.Context) error
	stops   []func(context.Context) error
	started bool
}

// add registers a component. Either callback may be nil.
func (l *lifecycle) add(start, stop func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = append(l.starts, start)
	l.stops = append(l.stops, stop)
}

// addCloser registers c to be closed on stop.
func (l *lifecycle) addCloser(name string, c io.Closer) {
	l.add(nil, func(context.Context) error {
		if err := c.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", name, err)
		}
		return nil
	})
}

func (l *lifecycle) start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return errors.New("already started")
	}
	for i, fn := range l.starts {
		if fn == nil {
			continue
		}
		if err := fn(ctx); err != nil {
			l.rollback(ctx, i)
			return fmt.Errorf("starting component %d: %w", i, err)
		}
	}
	l.started = true
	return nil
}

// rollback stops components registered before failedAt.
func (l *lifecycle) rollback(ctx context.Context, failedAt int) {
	for j := failedAt - 1; j >= 0; j-- {
		if l.stops[j] == nil {
			continue
		}
		if err := l.stops[j](ctx); err != nil {
			slog.Warn("rollback: stop failed", "component", j, "error", err)
		}
	}
}

// stop runs every stop callback, including for components that were never
// started, so resources opened during construction are released.
func (l *lifecycle) stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for i := len(l.stops) - 1; i >= 0; i-- {
		if l.stops[i] == nil {
			continue
		}
		if err := l.stops[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	l.stops = nil
	l.starts = nil
	l.started = false
	return errors.Join(errs...)
}
