// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"feedsync/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Cursor is a position in the newest-first item order: the item with
// this publish date and id.
type Cursor struct {
	PubDate time.Time
	ID      string
}

// Storage is the interface for all persistence operations.
type Storage interface {
	GetFeed(ctx context.Context, id string) (*model.FeedSource, error)
	ListFeeds(ctx context.Context) ([]model.FeedSource, error)
	ListActiveFeeds(ctx context.Context) ([]model.FeedSource, error)
	UpsertFeed(ctx context.Context, feed *model.FeedSource) error
	SetLastUpdated(ctx context.Context, feedID string, at time.Time) error
	DeleteFeed(ctx context.Context, id string) error

	GUIDs(ctx context.Context, feedID string) (map[string]struct{}, error)
	InsertItems(ctx context.Context, items []model.FeedItem) (int, error)
	ListFeedItems(ctx context.Context, feedID string, after *Cursor, limit int) ([]model.FeedItem, error)
	ListRecentItems(ctx context.Context, limit int) ([]model.FeedItem, error)
	CountItems(ctx context.Context, feedID string) (int, error)

	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	RenewLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error

	SchemaVersion(ctx context.Context) (int64, error)
	Close() error
}
