// Package normalize turns raw feed markup into canonical feed items.
package normalize

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"feedsync/internal/model"
)

// Normalizer parses RSS/Atom markup into canonical items.
type Normalizer struct {
	parser *gofeed.Parser
	now    func() time.Time
}

// New creates a Normalizer that stamps unparsable dates with the current time.
func New() *Normalizer {
	return &Normalizer{
		parser: gofeed.NewParser(),
		now:    time.Now,
	}
}

// WithClock overrides the ingestion clock (useful for testing).
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// LooksLikeFeed is a cheap shape check run before the parser: the body must
// start with '<' and mention an item or entry element.
func LooksLikeFeed(body string) bool {
	trimmed := strings.TrimSpace(strings.TrimPrefix(body, "\ufeff"))
	if !strings.HasPrefix(trimmed, "<") {
		return false
	}
	lower := strings.ToLower(trimmed)
	return strings.Contains(lower, "<item") || strings.Contains(lower, "<entry")
}

// Normalize parses body and returns its usable items in document order.
// The returned items carry no FeedID or ID yet.
func (n *Normalizer) Normalize(body string) ([]model.FeedItem, error) {
	feed, err := n.parser.ParseString(body)
	if err != nil {
		return nil, &model.ParseError{Err: err}
	}

	ingested := n.now().UTC()
	items := make([]model.FeedItem, 0, len(feed.Items))
	for _, raw := range feed.Items {
		if raw == nil {
			continue
		}
		item := n.normalizeItem(raw, ingested)
		if item.Title == "" && item.Link == "" {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no usable items in %d entries: %w", len(feed.Items), model.ErrInvalidFormat)
	}
	return items, nil
}

func (n *Normalizer) normalizeItem(raw *gofeed.Item, ingested time.Time) model.FeedItem {
	item := model.FeedItem{
		Title:       StripHTML(raw.Title),
		Link:        strings.TrimSpace(raw.Link),
		Description: StripHTML(raw.Description),
		Content:     StripHTML(raw.Content),
		Author:      StripHTML(authorOf(raw)),
		PubDate:     PubDate(raw, ingested),
		Categories:  categoriesOf(raw),
		OGImage:     imageOf(raw),
	}
	item.GUID = ItemGUID(raw)
	return item
}

// ItemGUID returns the identity of a feed entry: the feed guid, else the
// link, else a SHA-256 hash of title, link and published date.
func ItemGUID(item *gofeed.Item) string {
	if guid := strings.TrimSpace(item.GUID); guid != "" {
		return guid
	}
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link + "|" + item.Published))
	return fmt.Sprintf("sha256:%x", h[:16])
}

func authorOf(item *gofeed.Item) string {
	people := item.Authors
	if item.Author != nil {
		people = append([]*gofeed.Person{item.Author}, people...)
	}
	for _, p := range people {
		if p == nil {
			continue
		}
		if name := strings.TrimSpace(p.Name); name != "" {
			return name
		}
		if email := strings.TrimSpace(p.Email); email != "" {
			return email
		}
	}
	if dc := item.DublinCoreExt; dc != nil && len(dc.Creator) > 0 {
		return dc.Creator[0]
	}
	return ""
}

func imageOf(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return strings.TrimSpace(item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return strings.TrimSpace(enc.URL)
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, e := range media[name] {
				if u := e.Attrs["url"]; u != "" && (name == "thumbnail" || strings.HasPrefix(e.Attrs["medium"], "image") || strings.HasPrefix(e.Attrs["type"], "image/")) {
					return u
				}
			}
		}
	}
	return ""
}
