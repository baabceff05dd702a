package protocol

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFanout(t *testing.T) {
	var a, b []Event
	f := Fanout{
		SinkFunc(func(e Event) { a = append(a, e) }),
		nil,
		SinkFunc(func(e Event) { b = append(b, e) }),
	}
	events := []Event{
		Progress{FeedID: "f", Percent: 10, Status: "Fetching"},
		Completed{FeedID: "f", NewItems: 2, TotalItems: 3},
	}
	for _, e := range events {
		f.Emit(e)
	}
	if diff := cmp.Diff(events, a); diff != "" {
		t.Errorf("first sink mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(events, b); diff != "" {
		t.Errorf("second sink mismatch (-want +got):\n%s", diff)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	s.Emit(Failed{FeedID: "f1", Message: "unexpected status 503", Attempt: 3, MaxAttempts: 3})
	s.Emit(BulkSummary{Completed: 4, Total: 4, Failed: 1})

	out := buf.String()
	for _, want := range []string{
		`msg="feed update failed" feed_id=f1 attempt=3 max_attempts=3 error="unexpected status 503"`,
		`msg="bulk update finished" completed=4 total=4 failed=1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
