package normalize

import (
	"strings"

	"golang.org/x/net/html"
)

var rawTextTags = map[string]bool{
	"script": true,
	"style":  true,
}

var breakingTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "ul": true, "ol": true,
	"tr": true, "td": true, "th": true, "blockquote": true, "hr": true, "img": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "figure": true, "figcaption": true,
}

// StripHTML drops markup from s, decodes entities and collapses whitespace.
// Script and style bodies are discarded.
func StripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpace(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if rawTextTags[tag] {
				skip++
			} else if breakingTags[tag] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if rawTextTags[tag] {
				if skip > 0 {
					skip--
				}
			} else if breakingTags[tag] {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				// Text unescapes entities, including &nbsp; and &apos;.
				b.Write(z.Text())
			}
		}
	}
}

func collapseSpace(s string) string {
	// strings.Fields also splits on U+00A0.
	return strings.Join(strings.Fields(s), " ")
}
