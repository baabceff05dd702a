package normalize

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// ResolveCategory renders one category value as text. Feed dialects deliver
// plain strings or structured tags; structured values are probed for a text
// value, then a "value" field, then a "#text"/"text" field, and finally
// rendered as JSON. Blank results come back empty.
func ResolveCategory(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return StripHTML(c)
	case ext.Extension:
		if s := StripHTML(c.Value); s != "" {
			return s
		}
		for _, key := range []string{"value", "#text", "text"} {
			if s := StripHTML(c.Attrs[key]); s != "" {
				return s
			}
		}
		if len(c.Attrs) == 0 && len(c.Children) == 0 {
			return ""
		}
		return renderJSON(c)
	case map[string]string:
		for _, key := range []string{"_", "value", "#text", "text"} {
			if s := StripHTML(c[key]); s != "" {
				return s
			}
		}
		if len(c) == 0 {
			return ""
		}
		return renderJSON(c)
	case map[string]any:
		for _, key := range []string{"_", "value", "#text", "text"} {
			if s, ok := c[key].(string); ok {
				if s = StripHTML(s); s != "" {
					return s
				}
			}
		}
		if len(c) == 0 {
			return ""
		}
		return renderJSON(c)
	case fmt.Stringer:
		return StripHTML(c.String())
	default:
		return renderJSON(c)
	}
}

// renderJSON gives a stable rendering; encoding/json sorts map keys.
func renderJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	s := string(data)
	if s == "null" || s == `""` || s == "{}" {
		return ""
	}
	return s
}

func categoriesOf(item *gofeed.Item) []string {
	var values []any
	for _, c := range item.Categories {
		values = append(values, c)
	}
	if dc := item.DublinCoreExt; dc != nil {
		for _, s := range dc.Subject {
			values = append(values, s)
		}
	}
	for _, prefix := range slices.Sorted(maps.Keys(item.Extensions)) {
		for _, e := range item.Extensions[prefix]["category"] {
			values = append(values, e)
		}
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		s := ResolveCategory(v)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
