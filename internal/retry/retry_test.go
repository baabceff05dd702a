package retry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"feedsync/internal/model"
)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

func newTestController(t *testing.T) (*Controller, *[]*fakeTimer) {
	t.Helper()
	c := New(5*time.Second, 3, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var timers []*fakeTimer
	c.afterFunc = func(d time.Duration, f func()) stopper {
		ft := &fakeTimer{delay: d, fn: f}
		timers = append(timers, ft)
		return ft
	}
	return c, &timers
}

func TestOnFailureBackoffAndCeiling(t *testing.T) {
	c, timers := newTestController(t)
	transient := &model.TimeoutError{URL: "https://e.com", After: time.Second}

	want := []Decision{
		{Retry: true, Attempt: 1, Delay: 5 * time.Second, Ceiling: 3},
		{Retry: true, Attempt: 2, Delay: 10 * time.Second, Ceiling: 3},
		{Retry: true, Attempt: 3, Delay: 20 * time.Second, Ceiling: 3},
		{Retry: false, Attempt: 3, Ceiling: 3},
		{Retry: false, Attempt: 3, Ceiling: 3},
	}
	var got []Decision
	for range want {
		got = append(got, c.OnFailure("f1", transient, func() {}))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decisions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(3, len(*timers)); diff != "" {
		t.Fatalf("scheduled retries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(3, c.Attempts("f1")); diff != "" {
		t.Errorf("exhaustion must not reset the counter (-want +got):\n%s", diff)
	}

	c.OnSuccess("f1")
	if diff := cmp.Diff(0, c.Attempts("f1")); diff != "" {
		t.Errorf("success must clear the counter (-want +got):\n%s", diff)
	}
	d := c.OnFailure("f1", transient, func() {})
	if diff := cmp.Diff(5*time.Second, d.Delay); diff != "" {
		t.Errorf("backoff must restart after success (-want +got):\n%s", diff)
	}
}

func TestTerminalErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "invalid format", err: fmt.Errorf("normalize: %w", model.ErrInvalidFormat)},
		{name: "storage", err: &model.StorageError{Op: "insert items", Err: errors.New("disk full")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, timers := newTestController(t)
			d := c.OnFailure("f1", tt.err, func() {})
			if diff := cmp.Diff(Decision{Ceiling: 3}, d); diff != "" {
				t.Errorf("decision mismatch (-want +got):\n%s", diff)
			}
			if len(*timers) != 0 {
				t.Errorf("expected no scheduled retry, got %d", len(*timers))
			}
		})
	}
}

func TestFeedsAreIndependent(t *testing.T) {
	c, _ := newTestController(t)
	err := &model.HTTPError{StatusCode: 503}
	c.OnFailure("a", err, func() {})
	c.OnFailure("a", err, func() {})
	d := c.OnFailure("b", err, func() {})
	if diff := cmp.Diff(1, d.Attempt); diff != "" {
		t.Errorf("attempt mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, c.Attempts("a")); diff != "" {
		t.Errorf("attempts mismatch (-want +got):\n%s", diff)
	}
}

func TestResetStopsPendingTimers(t *testing.T) {
	c, timers := newTestController(t)
	err := &model.HTTPError{StatusCode: 500}
	c.OnFailure("a", err, func() {})
	c.OnFailure("b", err, func() {})

	c.Reset()
	for i, ft := range *timers {
		if !ft.stopped {
			t.Errorf("timer %d not stopped", i)
		}
	}
	if c.Attempts("a") != 0 || c.Attempts("b") != 0 {
		t.Error("expected counters cleared after reset")
	}
}

func TestScheduledRetryRuns(t *testing.T) {
	c := New(time.Millisecond, 3, slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan struct{})
	c.OnFailure("a", &model.HTTPError{StatusCode: 500}, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retry did not fire")
	}
}
