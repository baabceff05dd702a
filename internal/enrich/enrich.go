// Package enrich looks up preview images for items whose feed did not
// carry one.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultTimeout bounds a single page lookup.
const DefaultTimeout = 5 * time.Second

// ErrNoImage is returned when the page declares no og:image.
var ErrNoImage = errors.New("no og:image found")

// PageFetcher retrieves a page body within a time bound.
type PageFetcher interface {
	FetchWithin(ctx context.Context, target string, timeout time.Duration) (string, error)
}

// Finder resolves the og:image of article pages.
type Finder struct {
	fetcher PageFetcher
	timeout time.Duration
}

// New creates a Finder. A non-positive timeout selects DefaultTimeout.
func New(fetcher PageFetcher, timeout time.Duration) *Finder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Finder{fetcher: fetcher, timeout: timeout}
}

// Find fetches pageURL and returns its absolute og:image URL.
func (f *Finder) Find(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", ErrNoImage
	}
	body, err := f.fetcher.FetchWithin(ctx, pageURL, f.timeout)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	img := OGImage(body)
	if img == "" {
		return "", ErrNoImage
	}
	return resolve(pageURL, img), nil
}

// OGImage returns the raw og:image content declared in the document head.
func OGImage(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "head" {
				return ""
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "meta" || !hasAttr {
				continue
			}
			var prop, content string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch string(key) {
				case "property", "name":
					prop = strings.ToLower(string(val))
				case "content":
					content = strings.TrimSpace(string(val))
				}
			}
			if (prop == "og:image" || prop == "og:image:url") && content != "" {
				return content
			}
		}
	}
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
