package verify

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"feedsync/internal/sources"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/no-head", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("<rss/>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != DefaultUserAgent {
			w.WriteHeader(http.StatusForbidden)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck(t *testing.T) {
	srv := newTestSite(t)
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	c := New(nil, 100*time.Millisecond, "", 0)

	tests := []struct {
		name string
		url  string
		want Result
	}{
		{name: "ok", url: srv.URL + "/ok", want: Result{Status: 200}},
		{name: "head rejected falls back to get", url: srv.URL + "/no-head", want: Result{Status: 200}},
		{name: "not found", url: srv.URL + "/missing", want: Result{Status: 404}},
		{name: "default user agent", url: srv.URL + "/ua", want: Result{Status: 200}},
		{name: "redirect loop", url: srv.URL + "/loop", want: Result{Error: ClassTooManyRedirects}},
		{name: "timeout", url: srv.URL + "/slow", want: Result{Error: ClassTimeout}},
		{name: "connection refused", url: closedURL + "/ok", want: Result{Error: ClassConnection}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want.URL = tt.url
			if diff := cmp.Diff(tt.want, c.Check(context.Background(), tt.url)); diff != "" {
				t.Errorf("Check mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type countingTransport struct {
	inflight, peak atomic.Int32
}

func (ct *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	n := ct.inflight.Add(1)
	defer ct.inflight.Add(-1)
	for {
		m := ct.peak.Load()
		if n <= m || ct.peak.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       http.NoBody,
		Request:    r,
	}, nil
}

func TestCheckAllKeepsOrderAndLimit(t *testing.T) {
	ct := &countingTransport{}
	c := New(ct, time.Second, "", 3)

	var urls []string
	for _, p := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		urls = append(urls, "https://example.com/"+p)
	}
	got := c.CheckAll(context.Background(), urls)

	var gotURLs []string
	for _, r := range got {
		if !r.OK() {
			t.Errorf("%s: unexpected result %+v", r.URL, r)
		}
		gotURLs = append(gotURLs, r.URL)
	}
	if diff := cmp.Diff(urls, gotURLs); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if m := ct.peak.Load(); m > 3 {
		t.Errorf("expected at most 3 concurrent checks, got %d", m)
	}
}

func TestVerifySources(t *testing.T) {
	srv := newTestSite(t)
	c := New(nil, time.Second, "", 0)

	srcs := []sources.Source{
		{Title: "Good", URL: srv.URL + "/ok", MainURL: srv.URL + "/no-head"},
		{Title: "Dead site", URL: srv.URL + "/ok", MainURL: srv.URL + "/missing"},
		{URL: srv.URL + "/missing"},
	}
	report := c.VerifySources(context.Background(), srcs)

	if diff := cmp.Diff([]sources.Source{srcs[0]}, report.Verified); diff != "" {
		t.Errorf("verified mismatch (-want +got):\n%s", diff)
	}
	wantFailures := []string{
		"Dead site - main: " + srv.URL + "/missing -> Status: 404",
		srv.URL + "/missing - rss: " + srv.URL + "/missing -> Status: 404",
	}
	if diff := cmp.Diff(wantFailures, report.Failures); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, report.Failed()); diff != "" {
		t.Errorf("failed count mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := report.WriteLog(&buf); err != nil {
		t.Fatalf("write log: %v", err)
	}
	log := buf.String()
	for _, want := range []string{
		"RSS Feed Verification Log - ",
		"Total feeds checked: 3\n",
		"Verified feeds: 1\n",
		"Failed feeds: 2\n",
		wantFailures[0] + "\n",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("log missing %q:\n%s", want, log)
		}
	}
}
