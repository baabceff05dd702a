// Package model defines the domain types used across the application.
package model

import (
	"slices"
	"strings"
	"time"
)

// FeedSource represents a subscribed RSS/Atom feed.
type FeedSource struct {
	ID           string
	URL          string
	Title        string
	Description  string
	Tags         []string
	IgnoredWords []string
	// UpdateInterval is in minutes. Zero means the global default applies.
	UpdateInterval int
	LastUpdated    *time.Time
	IsActive       bool
	CreatedAt      time.Time
}

// FeedItem represents a single stored article of a feed.
type FeedItem struct {
	ID          string
	FeedID      string
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	PubDate     time.Time
	GUID        string
	Categories  []string
	OGImage     string
	IsRead      bool
	IsStarred   bool
	IsHidden    bool
	CreatedAt   time.Time
}

// ItemID returns the stored identity of an item. The same feed and guid
// always produce the same identity, which makes it the deduplication key.
func ItemID(feedID, guid string) string {
	return feedID + "-" + guid
}

// NormalizeTags trims tags and returns them sorted and unique.
func NormalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
