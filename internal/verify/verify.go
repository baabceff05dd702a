// Package verify checks that feed and site URLs respond.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"feedsync/internal/sources"
)

// Defaults used when zero values are passed to New.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultWorkers   = 20
	DefaultUserAgent = "Mozilla/5.0 RSS Feed Validator"
	maxRedirects     = 10
)

// Error classes reported in Result.Error.
const (
	ClassTimeout          = "Timeout"
	ClassConnection       = "Connection Error"
	ClassTooManyRedirects = "Too Many Redirects"
)

var errTooManyRedirects = errors.New("too many redirects")

// Result is the outcome of checking one URL. Status is zero when no
// response was received.
type Result struct {
	URL    string
	Status int
	Error  string
}

// OK reports whether the URL answered 200.
func (r Result) OK() bool {
	return r.Status == http.StatusOK
}

// Checker issues the probe requests.
type Checker struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	workers   int
}

// New creates a Checker. rt may be nil for the default transport.
func New(rt http.RoundTripper, timeout time.Duration, userAgent string, workers int) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Checker{
		client: &http.Client{
			Transport: rt,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		timeout:   timeout,
		userAgent: userAgent,
		workers:   workers,
	}
}

// Check probes url with HEAD and retries with GET when HEAD answers 400 or
// above, since many servers reject HEAD.
func (c *Checker) Check(ctx context.Context, url string) Result {
	status, err := c.probe(ctx, http.MethodHead, url)
	if err == nil && status >= http.StatusBadRequest {
		status, err = c.probe(ctx, http.MethodGet, url)
	}
	if err != nil {
		return Result{URL: url, Error: classify(err)}
	}
	return Result{URL: url, Status: status}
}

func (c *Checker) probe(ctx context.Context, method, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func classify(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, errTooManyRedirects):
		return ClassTooManyRedirects
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return ClassTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ClassTimeout
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return ClassConnection
	}
	return err.Error()
}

// CheckAll checks urls concurrently. Results keep the order of urls.
func (c *Checker) CheckAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = c.Check(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Report summarizes a verification run over a sources file.
type Report struct {
	Started  time.Time
	Total    int
	Verified []sources.Source
	Failures []string
}

// Failed returns the number of sources with at least one failing URL.
func (r Report) Failed() int {
	return r.Total - len(r.Verified)
}

// VerifySources checks the feed URL and, when present, the site URL of every
// source. A source is verified only when all of its URLs answer 200.
func (c *Checker) VerifySources(ctx context.Context, srcs []sources.Source) Report {
	failures := make([][]string, len(srcs))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, s := range srcs {
		g.Go(func() error {
			failures[i] = c.verifySource(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Started: time.Now(), Total: len(srcs)}
	for i, s := range srcs {
		if len(failures[i]) == 0 {
			report.Verified = append(report.Verified, s)
			continue
		}
		report.Failures = append(report.Failures, failures[i]...)
	}
	return report
}

func (c *Checker) verifySource(ctx context.Context, s sources.Source) []string {
	name := s.Title
	if name == "" {
		name = s.URL
	}
	checks := []struct{ kind, url string }{{"rss", s.URL}}
	if s.MainURL != "" {
		checks = append(checks, struct{ kind, url string }{"main", s.MainURL})
	}

	var out []string
	for _, chk := range checks {
		r := c.Check(ctx, chk.url)
		if r.OK() {
			continue
		}
		msg := fmt.Sprintf("%s - %s: %s -> Status: %d", name, chk.kind, chk.url, r.Status)
		if r.Error != "" {
			msg += " (" + r.Error + ")"
		}
		out = append(out, msg)
	}
	return out
}

// WriteLog writes the error log of a run.
func (r Report) WriteLog(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "RSS Feed Verification Log - %s\n", r.Started.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total feeds checked: %d\n", r.Total)
	fmt.Fprintf(&b, "Verified feeds: %d\n", len(r.Verified))
	fmt.Fprintf(&b, "Failed feeds: %d\n", r.Failed())
	fmt.Fprintf(&b, "\n%s\n\n", strings.Repeat("=", 80))
	for _, f := range r.Failures {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
