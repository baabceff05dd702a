// Package retry bounds per-feed re-attempts of failed update cycles with
// exponential backoff.
package retry

import (
	"log/slog"
	"sync"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"feedsync/internal/model"
)

// Defaults for the backoff policy.
const (
	DefaultBase    = 5 * time.Second
	DefaultCeiling = 3
)

// Decision describes what the controller did with a failure.
type Decision struct {
	Retry   bool
	Attempt int
	Delay   time.Duration
	Ceiling int
}

type stopper interface {
	Stop() bool
}

type feedState struct {
	attempts int
	backoff  goretry.Backoff
	timer    stopper
}

// Controller keeps one retry counter per feed. Counters are cleared on
// success only; exhausting the ceiling leaves them in place.
type Controller struct {
	mu        sync.Mutex
	base      time.Duration
	ceiling   int
	feeds     map[string]*feedState
	afterFunc func(d time.Duration, f func()) stopper
	log       *slog.Logger
}

// New creates a Controller. Non-positive arguments select the defaults.
func New(base time.Duration, ceiling int, log *slog.Logger) *Controller {
	if base <= 0 {
		base = DefaultBase
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Controller{
		base:    base,
		ceiling: ceiling,
		feeds:   make(map[string]*feedState),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		log: log,
	}
}

// Ceiling returns the maximum number of retries per feed.
func (c *Controller) Ceiling() int {
	return c.ceiling
}

// OnFailure decides whether feedID gets another attempt. When it does,
// retryFn is scheduled once after base*2^attempt.
func (c *Controller) OnFailure(feedID string, err error, retryFn func()) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.feeds[feedID]
	attempts := 0
	if st != nil {
		attempts = st.attempts
	}

	if model.IsTerminal(err) {
		c.log.Warn("terminal failure, not retrying", "feed_id", feedID, "error", err)
		return Decision{Attempt: attempts, Ceiling: c.ceiling}
	}
	if attempts >= c.ceiling {
		c.log.Warn("retry ceiling reached", "feed_id", feedID, "attempts", attempts, "error", err)
		return Decision{Attempt: attempts, Ceiling: c.ceiling}
	}

	if st == nil {
		st = &feedState{backoff: goretry.WithMaxRetries(uint64(c.ceiling), goretry.NewExponential(c.base))}
		c.feeds[feedID] = st
	}
	delay, stop := st.backoff.Next()
	if stop {
		return Decision{Attempt: st.attempts, Ceiling: c.ceiling}
	}

	if st.timer != nil {
		st.timer.Stop()
	}
	st.attempts++
	st.timer = c.afterFunc(delay, retryFn)

	c.log.Info("retry scheduled", "feed_id", feedID, "attempt", st.attempts, "delay", delay, "error", err)
	return Decision{Retry: true, Attempt: st.attempts, Delay: delay, Ceiling: c.ceiling}
}

// OnSuccess clears the feed's counter.
func (c *Controller) OnSuccess(feedID string) {
	c.Clear(feedID)
}

// Clear stops a pending retry for the feed and forgets its counter.
func (c *Controller) Clear(feedID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.feeds[feedID]; ok {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(c.feeds, feedID)
	}
}

// Attempts returns the number of retries scheduled since the last success.
func (c *Controller) Attempts(feedID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.feeds[feedID]; ok {
		return st.attempts
	}
	return 0
}

// Reset stops every pending retry and clears all counters.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.feeds {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	c.feeds = make(map[string]*feedState)
}
