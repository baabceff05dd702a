// Package protocol defines the commands accepted by background actors and
// the events they report.
package protocol

import (
	"time"

	"feedsync/internal/model"
)

// Command is a message sent to an actor.
type Command interface {
	isCommand()
}

// UpdateFeed runs one update cycle for a feed.
type UpdateFeed struct {
	FeedID string
}

// UpdateAll runs the bulk update over all active feeds.
type UpdateAll struct{}

// ScheduleFeed (re)arms the recurring timer of a feed.
type ScheduleFeed struct {
	FeedID   string
	Interval time.Duration
}

// CancelSchedule stops the recurring timer of a feed.
type CancelSchedule struct {
	FeedID string
}

// SetFeeds replaces the actor's known feed-source set.
type SetFeeds struct {
	Feeds []model.FeedSource
}

// RefreshSchedules re-arms timers after a configuration change.
type RefreshSchedules struct{}

// UpdateNow updates a feed immediately, resetting its retry counter and
// schedule.
type UpdateNow struct {
	FeedID string
}

// Teardown stops every timer and clears all per-feed state.
type Teardown struct{}

func (UpdateFeed) isCommand()       {}
func (UpdateAll) isCommand()        {}
func (ScheduleFeed) isCommand()     {}
func (CancelSchedule) isCommand()   {}
func (SetFeeds) isCommand()         {}
func (RefreshSchedules) isCommand() {}
func (UpdateNow) isCommand()        {}
func (Teardown) isCommand()         {}

// Event is a message reported by an actor.
type Event interface {
	isEvent()
}

// Progress reports a stage transition of a single-feed update.
type Progress struct {
	FeedID  string
	Percent int
	Status  string
}

// Completed reports a successful update cycle.
type Completed struct {
	FeedID      string
	NewItems    int
	TotalItems  int
	HiddenItems int
}

// Failed reports a final failure. Attempt and MaxAttempts let consumers
// offer a manual retry.
type Failed struct {
	FeedID      string
	Message     string
	Attempt     int
	MaxAttempts int
}

// BulkProgress is emitted after every feed of a bulk update.
type BulkProgress struct {
	Completed int
	Total     int
}

// BulkSummary closes a bulk update.
type BulkSummary struct {
	Completed int
	Total     int
	Failed    int
}

// Scheduled confirms a (re)armed timer.
type Scheduled struct {
	FeedID   string
	Interval time.Duration
	NextRun  time.Time
}

// TornDown confirms a teardown.
type TornDown struct{}

func (Progress) isEvent()     {}
func (Completed) isEvent()    {}
func (Failed) isEvent()       {}
func (BulkProgress) isEvent() {}
func (BulkSummary) isEvent()  {}
func (Scheduled) isEvent()    {}
func (TornDown) isEvent()     {}
