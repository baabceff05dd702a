// Package relay fetches remote documents through the trusted same-origin
// relay endpoint.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feedsync/internal/model"
)

const (
	// DefaultTimeout bounds a single-feed fetch.
	DefaultTimeout = 15 * time.Second

	maxBodySize  = 5 * 1024 * 1024
	maxErrorBody = 512
)

// ErrBodyTooLarge reports a document over the size limit. It also matches
// model.ErrInvalidFormat, so the update is not retried.
var ErrBodyTooLarge = errors.New("response body too large")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client asks the relay for documents: GET <endpoint>?url=<target>.
type Client struct {
	client    HTTPClient
	endpoint  *url.URL
	timeout   time.Duration
	userAgent string
	maxBody   int64
}

// New creates a Client for the given relay endpoint.
func New(client HTTPClient, endpoint string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("relay url %q must be absolute", endpoint)
	}
	return &Client{
		client:    client,
		endpoint:  u,
		timeout:   DefaultTimeout,
		userAgent: "feedsync/1.0",
		maxBody:   maxBodySize,
	}, nil
}

// SetTimeout overrides the default fetch bound.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetUserAgent overrides the User-Agent header.
func (c *Client) SetUserAgent(ua string) {
	c.userAgent = ua
}

// Fetch returns the body of target using the default bound.
func (c *Client) Fetch(ctx context.Context, target string) (string, error) {
	return c.FetchWithin(ctx, target, c.timeout)
}

// FetchWithin returns the body of target. An exceeded bound surfaces as
// *model.TimeoutError and a non-2xx answer as *model.HTTPError.
func (c *Client) FetchWithin(ctx context.Context, target string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URLFor(target), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", c.classify(ctx, target, timeout, fmt.Errorf("http get: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &model.HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return "", c.classify(ctx, target, timeout, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > c.maxBody {
		return "", fmt.Errorf("%w: %w: over %d bytes", model.ErrInvalidFormat, ErrBodyTooLarge, c.maxBody)
	}
	return string(body), nil
}

// URLFor returns the relay URL that fetches target.
func (c *Client) URLFor(target string) string {
	u := *c.endpoint
	q := u.Query()
	q.Set("url", target)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) classify(ctx context.Context, target string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &model.TimeoutError{URL: target, After: timeout}
	}
	return err
}
