// Package sources loads the feed-source file and syncs it into the store.
package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"feedsync/internal/model"
)

// ErrNoFile is returned by Load when the sources file does not exist.
var ErrNoFile = errors.New("sources file not found")

// Source is one entry of the sources file.
type Source struct {
	ID             string   `yaml:"id,omitempty"`
	URL            string   `yaml:"url"`
	MainURL        string   `yaml:"main_url,omitempty"`
	Title          string   `yaml:"title,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	Tags           []string `yaml:"tags,omitempty"`
	IgnoredWords   []string `yaml:"ignored_words,omitempty"`
	UpdateInterval int      `yaml:"update_interval,omitempty"`
	Active         *bool    `yaml:"active,omitempty"`
}

// File is the document stored in the sources file.
type File struct {
	Feeds []Source `yaml:"feeds"`
}

// ID derives a stable feed id from its URL.
func ID(feedURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(feedURL)).String()
}

// Feed converts the entry to a feed source.
func (s Source) Feed() model.FeedSource {
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	id := s.ID
	if id == "" {
		id = ID(s.URL)
	}
	title := s.Title
	if title == "" {
		title = s.URL
	}
	return model.FeedSource{
		ID:             id,
		URL:            s.URL,
		Title:          title,
		Description:    s.Description,
		Tags:           model.NormalizeTags(s.Tags),
		IgnoredWords:   s.IgnoredWords,
		UpdateInterval: s.UpdateInterval,
		IsActive:       active,
	}
}

// Load reads and validates the sources file at path.
func Load(path string) ([]Source, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoFile)
	}
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a sources document.
func Parse(data []byte) ([]Source, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	seen := make(map[string]int, len(f.Feeds))
	for i := range f.Feeds {
		s := &f.Feeds[i]
		s.URL = strings.TrimSpace(s.URL)
		if err := validateURL(s.URL); err != nil {
			return nil, fmt.Errorf("feed %d: %w", i+1, err)
		}
		if s.UpdateInterval < 0 {
			return nil, fmt.Errorf("feed %d: update_interval must not be negative", i+1)
		}
		id := s.Feed().ID
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("feed %d: duplicate id %s (also feed %d)", i+1, id, prev)
		}
		seen[id] = i + 1
	}
	return f.Feeds, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// Store is the persistence Sync needs.
type Store interface {
	ListFeeds(ctx context.Context) ([]model.FeedSource, error)
	UpsertFeed(ctx context.Context, feed *model.FeedSource) error
	DeleteFeed(ctx context.Context, id string) error
}

// SyncResult reports what Sync changed.
type SyncResult struct {
	Upserted int
	Removed  []string
}

// Sync makes the stored feeds match sources. Feeds missing from sources
// are deleted together with their items.
func Sync(ctx context.Context, store Store, srcs []Source) (SyncResult, error) {
	var res SyncResult
	keep := make(map[string]struct{}, len(srcs))
	for _, s := range srcs {
		feed := s.Feed()
		if err := store.UpsertFeed(ctx, &feed); err != nil {
			return res, fmt.Errorf("upsert %s: %w", feed.URL, err)
		}
		keep[feed.ID] = struct{}{}
		res.Upserted++
	}

	stored, err := store.ListFeeds(ctx)
	if err != nil {
		return res, fmt.Errorf("list feeds: %w", err)
	}
	for _, f := range stored {
		if _, ok := keep[f.ID]; ok {
			continue
		}
		if err := store.DeleteFeed(ctx, f.ID); err != nil {
			return res, fmt.Errorf("delete %s: %w", f.ID, err)
		}
		res.Removed = append(res.Removed, f.ID)
	}
	return res, nil
}
