package normalize

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Fallback layouts, tried in order once the parser's own date handling has
// given up: ISO 8601, SQL timestamps, then RFC 822 variants.
var (
	isoLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02T15:04:05.000Z0700",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	sqlLayouts = []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05 -0700",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	rfc822Layouts = []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"Mon, 02 Jan 2006 15:04 -0700",
		"Mon, 02 Jan 2006 15:04 MST",
		"2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 MST",
		"02 Jan 2006 15:04 MST",
		"Mon, 2 Jan 2006",
	}
)

// PubDate resolves the publish date of an entry. It never fails: when
// nothing parses, the ingestion time is used.
func PubDate(item *gofeed.Item, ingested time.Time) time.Time {
	if item.PublishedParsed != nil && !item.PublishedParsed.IsZero() {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil && !item.UpdatedParsed.IsZero() {
		return item.UpdatedParsed.UTC()
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if t, ok := ParseDate(raw); ok {
			return t
		}
	}
	return ingested
}

// ParseDate tries the fallback layouts in order.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, group := range [][]string{isoLayouts, sqlLayouts, rfc822Layouts} {
		for _, layout := range group {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
