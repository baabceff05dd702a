// Package gate serializes writes to one feed's item set across actors.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrUnavailable is returned by a Locker that cannot provide exclusion.
// Callers then proceed with whatever exclusion is still held.
var ErrUnavailable = errors.New("gate unavailable")

// Locker acquires named exclusive gates.
type Locker interface {
	Lock(ctx context.Context, name string) (func(), error)
}

// Key returns the gate name for a feed.
func Key(feedID string) string {
	return "feed-update-" + feedID
}

// Local is an in-process keyed mutex.
type Local struct {
	mu    sync.Mutex
	gates map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an empty Local locker.
func NewLocal() *Local {
	return &Local{gates: make(map[string]*entry)}
}

// Lock blocks until name is free or ctx is done.
func (l *Local) Lock(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	e, ok := l.gates[name]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.gates[name] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(name, e, false)
		return nil, fmt.Errorf("acquire %s: %w", name, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(name, e, true) })
	}, nil
}

func (l *Local) release(name string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.gates, name)
	}
}

// Chain acquires every locker in order and releases them in reverse.
// A locker failing with ErrUnavailable is skipped: Lock then returns the
// unlock for the lockers still held together with an ErrUnavailable
// error. The unlock is nil only when nothing is held.
type Chain []Locker

// Lock implements Locker.
func (c Chain) Lock(ctx context.Context, name string) (func(), error) {
	var (
		held        []func()
		unavailable []error
	)
	unlockAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, l := range c {
		unlock, err := l.Lock(ctx, name)
		if errors.Is(err, ErrUnavailable) {
			unavailable = append(unavailable, err)
			continue
		}
		if err != nil {
			unlockAll()
			return nil, err
		}
		held = append(held, unlock)
	}
	if len(unavailable) == 0 {
		return unlockAll, nil
	}
	err := errors.Join(unavailable...)
	if len(held) == 0 {
		return nil, err
	}
	return unlockAll, err
}

// Coordinator runs feed writes under the feed's gate.
type Coordinator struct {
	locker Locker
	log    *slog.Logger
}

// NewCoordinator creates a Coordinator. A nil locker runs every write
// in degraded mode.
func NewCoordinator(locker Locker, log *slog.Logger) *Coordinator {
	return &Coordinator{locker: locker, log: log}
}

// WithFeed runs fn while holding the feed's gate. The gate is released
// when fn returns, including on error.
func (c *Coordinator) WithFeed(ctx context.Context, feedID string, fn func(ctx context.Context) error) error {
	name := Key(feedID)
	if c.locker == nil {
		c.log.Warn("no gate configured, writing unguarded", "feed_id", feedID)
		return fn(ctx)
	}

	unlock, err := c.locker.Lock(ctx, name)
	switch {
	case errors.Is(err, ErrUnavailable) && unlock == nil:
		c.log.Warn("gate unavailable, writing unguarded", "feed_id", feedID, "error", err)
		return fn(ctx)
	case errors.Is(err, ErrUnavailable):
		c.log.Warn("gate partially unavailable, keeping held locks", "feed_id", feedID, "error", err)
	case err != nil:
		return fmt.Errorf("acquire gate: %w", err)
	}
	defer unlock()

	c.log.Debug("gate acquired", "gate", name)
	return fn(ctx)
}
