package protocol

import (
	"log/slog"
)

// Sink receives events. Implementations must not block for long.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) {
	f(e)
}

// Fanout delivers every event to each sink in order.
type Fanout []Sink

// Emit implements Sink.
func (f Fanout) Emit(e Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(e)
		}
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Emit implements Sink.
func (s *LogSink) Emit(e Event) {
	switch ev := e.(type) {
	case Progress:
		s.log.Debug("progress", "feed_id", ev.FeedID, "percent", ev.Percent, "status", ev.Status)
	case Completed:
		s.log.Info("feed updated", "feed_id", ev.FeedID, "new", ev.NewItems, "total", ev.TotalItems, "hidden", ev.HiddenItems)
	case Failed:
		s.log.Error("feed update failed", "feed_id", ev.FeedID, "attempt", ev.Attempt, "max_attempts", ev.MaxAttempts, "error", ev.Message)
	case BulkProgress:
		s.log.Debug("bulk progress", "completed", ev.Completed, "total", ev.Total)
	case BulkSummary:
		s.log.Info("bulk update finished", "completed", ev.Completed, "total", ev.Total, "failed", ev.Failed)
	case Scheduled:
		s.log.Debug("feed scheduled", "feed_id", ev.FeedID, "interval", ev.Interval, "next_run", ev.NextRun)
	case TornDown:
		s.log.Info("actor torn down")
	}
}
