package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFormat reports a body that is not feed-shaped or that produced
// no usable items. It is terminal and never retried.
var ErrInvalidFormat = errors.New("invalid feed format")

// TimeoutError reports a fetch that exceeded its time bound.
type TimeoutError struct {
	URL   string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch %s: timed out after %s", e.URL, e.After)
}

// HTTPError reports a non-2xx response from the relay.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// ParseError reports markup that could not be parsed at all.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StorageError reports a failed store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err must not be retried.
func IsTerminal(err error) bool {
	if errors.Is(err, ErrInvalidFormat) {
		return true
	}
	var se *StorageError
	return errors.As(err, &se)
}
