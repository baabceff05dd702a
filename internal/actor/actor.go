// Package actor runs an update engine behind a command inbox, with its own
// scheduler and retry bookkeeping.
package actor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"feedsync/internal/pipeline"
	"feedsync/internal/protocol"
	"feedsync/internal/retry"
	"feedsync/internal/scheduler"
)

// ErrStopped is returned by Send once the actor has stopped.
var ErrStopped = errors.New("actor stopped")

const defaultInboxSize = 64

// Config wires an Actor. The actor builds its own engine from Pipeline so
// that retry state stays actor-local.
type Config struct {
	Name            string
	Pipeline        pipeline.Config
	RetryBase       time.Duration
	MaxRetries      int
	Sink            protocol.Sink
	Log             *slog.Logger
	DefaultInterval time.Duration
	// Periodic sends UpdateAll on its own ticker when positive.
	Periodic  time.Duration
	InboxSize int
}

// Actor owns one engine, scheduler and retry controller. Commands are
// handled one at a time; update work runs on its own goroutines so the
// inbox never waits on network or disk.
type Actor struct {
	engine   *pipeline.Engine
	sched    *scheduler.Scheduler
	retry    *retry.Controller
	sink     protocol.Sink
	log      *slog.Logger
	periodic time.Duration

	inbox chan protocol.Command
	done  chan struct{}
	wg    sync.WaitGroup
}

// New creates an Actor. Run must be called to start processing.
func New(cfg Config) *Actor {
	size := cfg.InboxSize
	if size <= 0 {
		size = defaultInboxSize
	}
	sink := cfg.Sink
	if sink == nil {
		sink = protocol.Fanout(nil)
	}
	log := cfg.Log.With("actor", cfg.Name)

	rc := retry.New(cfg.RetryBase, cfg.MaxRetries, log)
	pc := cfg.Pipeline
	pc.Retry = rc
	pc.Sink = sink
	pc.Log = log

	a := &Actor{
		engine:   pipeline.New(pc),
		retry:    rc,
		sink:     sink,
		log:      log,
		periodic: cfg.Periodic,
		inbox:    make(chan protocol.Command, size),
		done:     make(chan struct{}),
	}
	a.sched = scheduler.New(func(feedID string) {
		if err := a.Send(protocol.UpdateFeed{FeedID: feedID}); err != nil {
			a.log.Debug("drop scheduled update", "feed_id", feedID, "error", err)
		}
	}, cfg.DefaultInterval, log)
	return a
}

// Retry exposes the actor's retry bookkeeping.
func (a *Actor) Retry() *retry.Controller {
	return a.retry
}

// Scheduled returns the ids of feeds with a running timer.
func (a *Actor) Scheduled() []string {
	return a.sched.Scheduled()
}

// Send queues a command. It blocks while the inbox is full.
func (a *Actor) Send(cmd protocol.Command) error {
	select {
	case <-a.done:
		return ErrStopped
	default:
	}
	select {
	case a.inbox <- cmd:
		return nil
	case <-a.done:
		return ErrStopped
	}
}

// Run processes commands until ctx is cancelled, then stops all timers
// and waits for in-flight updates.
func (a *Actor) Run(ctx context.Context) error {
	a.log.Info("actor started")
	defer a.log.Info("actor stopped")

	if a.periodic > 0 {
		a.wg.Add(1)
		go a.tickLoop(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(a.done)
			a.sched.Teardown()
			a.retry.Reset()
			a.wg.Wait()
			return nil
		case cmd := <-a.inbox:
			a.handle(ctx, cmd)
		}
	}
}

func (a *Actor) handle(ctx context.Context, cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.UpdateFeed:
		a.spawn(func() { a.engine.Run(ctx, c.FeedID) })

	case protocol.UpdateAll:
		a.spawn(func() {
			if _, err := a.engine.UpdateAll(ctx); err != nil {
				a.log.Error("bulk update", "error", err)
			}
		})

	case protocol.ScheduleFeed:
		interval := c.Interval
		if interval <= 0 {
			interval = a.sched.Interval(c.FeedID)
		}
		a.schedule(ctx, c.FeedID, interval)

	case protocol.CancelSchedule:
		a.sched.Cancel(c.FeedID)

	case protocol.SetFeeds:
		a.sched.SetFeeds(c.Feeds)

	case protocol.RefreshSchedules:
		for _, s := range a.sched.Refresh(ctx) {
			a.sink.Emit(s)
		}

	case protocol.UpdateNow:
		a.retry.Clear(c.FeedID)
		if f, ok := a.sched.Feed(c.FeedID); ok && f.IsActive {
			a.schedule(ctx, c.FeedID, a.sched.Interval(c.FeedID))
		}
		a.spawn(func() { a.engine.Run(ctx, c.FeedID) })

	case protocol.Teardown:
		a.sched.Teardown()
		a.retry.Reset()
		a.sink.Emit(protocol.TornDown{})

	default:
		a.log.Warn("unknown command", "command", cmd)
	}
}

func (a *Actor) schedule(ctx context.Context, feedID string, interval time.Duration) {
	next, err := a.sched.Schedule(ctx, feedID, interval)
	if err != nil {
		a.log.Error("schedule feed", "feed_id", feedID, "error", err)
		return
	}
	a.sink.Emit(protocol.Scheduled{FeedID: feedID, Interval: interval, NextRun: next})
}

func (a *Actor) spawn(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

func (a *Actor) tickLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.periodic)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Send(protocol.UpdateAll{}); err != nil {
				return
			}
		}
	}
}
