// Package filter implements the ignored-word matching engine.
package filter

import (
	"regexp"
	"strings"

	"feedsync/internal/model"
)

// Mode defines how a rule's word is matched.
type Mode int

// Supported match modes.
const (
	// ModeWord matches the word between word boundaries.
	ModeWord Mode = iota
	// ModeSubstring matches "*word*" anywhere in the text.
	ModeSubstring
	// ModePrefix matches "word*" at the start of a word.
	ModePrefix
	// ModeSuffix matches "*word" at the end of a word.
	ModeSuffix
)

// Rule is one parsed ignored-word rule.
type Rule struct {
	Raw  string
	Word string
	Mode Mode
	re   *regexp.Regexp
}

// Characters that are not letters, digits or underscore separate words.
const boundary = `[^\p{L}\p{N}_]`

// ParseRule parses a raw rule. Blank rules and rules made only of
// asterisks are rejected.
func ParseRule(raw string) (Rule, bool) {
	r := strings.ToLower(strings.TrimSpace(raw))
	lead := strings.HasPrefix(r, "*")
	trail := strings.HasSuffix(r, "*")
	word := strings.Trim(r, "*")
	if word == "" {
		return Rule{}, false
	}

	rule := Rule{Raw: r, Word: word}
	quoted := regexp.QuoteMeta(word)
	switch {
	case lead && trail:
		rule.Mode = ModeSubstring
	case trail:
		rule.Mode = ModePrefix
		rule.re = regexp.MustCompile(`(?:^|` + boundary + `)` + quoted)
	case lead:
		rule.Mode = ModeSuffix
		rule.re = regexp.MustCompile(quoted + `(?:$|` + boundary + `)`)
	default:
		rule.Mode = ModeWord
		rule.re = regexp.MustCompile(`(?:^|` + boundary + `)` + quoted + `(?:$|` + boundary + `)`)
	}
	return rule, true
}

// Matches reports whether the rule matches already lowercased text.
func (r Rule) Matches(text string) bool {
	if r.Mode == ModeSubstring {
		return strings.Contains(text, r.Word)
	}
	return r.re.MatchString(text)
}

// Combine unions global and per-feed rules, dropping case-folded
// duplicates. Global rules come first.
func Combine(global, perFeed []string) []string {
	seen := make(map[string]struct{}, len(global)+len(perFeed))
	var out []string
	for _, list := range [][]string{global, perFeed} {
		for _, w := range list {
			key := strings.ToLower(strings.TrimSpace(w))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(w))
		}
	}
	return out
}

// Matcher evaluates a compiled rule set.
type Matcher struct {
	rules []Rule
}

// Compile parses every rule once so a whole feed can be evaluated cheaply.
func Compile(words []string) Matcher {
	var m Matcher
	for _, w := range words {
		if r, ok := ParseRule(w); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// Hidden reports whether any rule matches the item.
func (m Matcher) Hidden(item model.FeedItem) bool {
	_, hidden := m.Reason(item)
	return hidden
}

// Reason returns the first matching rule.
func (m Matcher) Reason(item model.FeedItem) (string, bool) {
	if len(m.rules) == 0 {
		return "", false
	}
	text := Text(item)
	for _, r := range m.rules {
		if r.Matches(text) {
			return r.Raw, true
		}
	}
	return "", false
}

// Hidden reports whether the item is hidden by the given rules.
// An empty rule set never hides anything.
func Hidden(item model.FeedItem, rules []string) bool {
	return Compile(rules).Hidden(item)
}

// Text returns the lowercased concatenation of the item's textual fields.
// Identities, dates and flags are not part of it.
func Text(item model.FeedItem) string {
	parts := []string{item.Title, item.Link, item.Description, item.Content, item.Author}
	parts = append(parts, item.Categories...)
	return strings.ToLower(strings.Join(parts, " "))
}
