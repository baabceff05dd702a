// Package scheduler keeps one recurring timer per feed.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"feedsync/internal/model"
	"feedsync/internal/protocol"
)

// DefaultInterval applies to feeds without their own interval.
const DefaultInterval = 30 * time.Minute

// Trigger is called on every tick of an active feed.
type Trigger func(feedID string)

type timer struct {
	interval time.Duration
	stop     chan struct{}
}

// Scheduler fires Trigger for each scheduled feed on its interval. Ticks
// of feeds that are unknown or inactive are skipped, but their timers keep
// running until cancelled.
type Scheduler struct {
	mu              sync.Mutex
	timers          map[string]*timer
	feeds           map[string]model.FeedSource
	trigger         Trigger
	defaultInterval time.Duration
	log             *slog.Logger
	now             func() time.Time
}

// New creates a Scheduler.
func New(trigger Trigger, defaultInterval time.Duration, log *slog.Logger) *Scheduler {
	if defaultInterval <= 0 {
		defaultInterval = DefaultInterval
	}
	return &Scheduler{
		timers:          make(map[string]*timer),
		feeds:           make(map[string]model.FeedSource),
		trigger:         trigger,
		defaultInterval: defaultInterval,
		log:             log,
		now:             time.Now,
	}
}

// IntervalFor returns the feed's own interval, or def when it has none.
func IntervalFor(feed model.FeedSource, def time.Duration) time.Duration {
	if feed.UpdateInterval > 0 {
		return time.Duration(feed.UpdateInterval) * time.Minute
	}
	return def
}

// Interval returns the interval the scheduler would use for a cached feed.
func (s *Scheduler) Interval(feedID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IntervalFor(s.feeds[feedID], s.defaultInterval)
}

// Schedule (re)arms the timer of feedID and returns the next run time.
// Any existing timer for the feed is cleared first.
func (s *Scheduler) Schedule(ctx context.Context, feedID string, interval time.Duration) (time.Time, error) {
	if interval <= 0 {
		return time.Time{}, fmt.Errorf("schedule %s: interval must be positive, got %s", feedID, interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(ctx, feedID, interval), nil
}

func (s *Scheduler) scheduleLocked(ctx context.Context, feedID string, interval time.Duration) time.Time {
	s.cancelLocked(feedID)

	t := &timer{interval: interval, stop: make(chan struct{})}
	s.timers[feedID] = t
	go s.loop(ctx, feedID, t)

	next := s.now().Add(interval)
	s.log.Debug("feed scheduled", "feed_id", feedID, "interval", interval, "next_run", next)
	return next
}

func (s *Scheduler) loop(ctx context.Context, feedID string, t *timer) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			s.tick(feedID)
		}
	}
}

func (s *Scheduler) tick(feedID string) {
	s.mu.Lock()
	feed, ok := s.feeds[feedID]
	s.mu.Unlock()

	if !ok || !feed.IsActive {
		s.log.Debug("skipping tick of inactive feed", "feed_id", feedID)
		return
	}
	s.trigger(feedID)
}

// Cancel stops the timer of feedID.
func (s *Scheduler) Cancel(feedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(feedID)
}

func (s *Scheduler) cancelLocked(feedID string) {
	if t, ok := s.timers[feedID]; ok {
		close(t.stop)
		delete(s.timers, feedID)
	}
}

// SetFeeds replaces the cached feed configurations.
func (s *Scheduler) SetFeeds(feeds []model.FeedSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds = make(map[string]model.FeedSource, len(feeds))
	for _, f := range feeds {
		s.feeds[f.ID] = f
	}
}

// Feed returns the cached configuration of feedID.
func (s *Scheduler) Feed(feedID string) (model.FeedSource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[feedID]
	return f, ok
}

// Refresh re-arms a timer for every active cached feed and cancels the
// timers of all other feeds. It returns the new schedules ordered by feed.
func (s *Scheduler) Refresh(ctx context.Context) []protocol.Scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.timers {
		if f, ok := s.feeds[id]; !ok || !f.IsActive {
			s.cancelLocked(id)
		}
	}

	var out []protocol.Scheduled
	for _, id := range slices.Sorted(maps.Keys(s.feeds)) {
		f := s.feeds[id]
		if !f.IsActive {
			continue
		}
		interval := IntervalFor(f, s.defaultInterval)
		next := s.scheduleLocked(ctx, id, interval)
		out = append(out, protocol.Scheduled{FeedID: id, Interval: interval, NextRun: next})
	}
	return out
}

// Scheduled returns the ids of feeds with a running timer.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.timers))
}

// Teardown stops every timer and clears the cached feeds.
func (s *Scheduler) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		s.cancelLocked(id)
	}
	s.feeds = make(map[string]model.FeedSource)
}
