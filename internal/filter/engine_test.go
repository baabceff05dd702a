package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"feedsync/internal/model"
)

func TestHidden(t *testing.T) {
	tests := []struct {
		name  string
		item  model.FeedItem
		rules []string
		want  bool
	}{
		{
			name:  "no rules never hides",
			item:  model.FeedItem{Title: "spam spam spam"},
			rules: nil,
			want:  false,
		},
		{
			name:  "substring rule is case insensitive",
			item:  model.FeedItem{Title: "This is SPAMMY content"},
			rules: []string{"*spam*"},
			want:  true,
		},
		{
			name:  "prefix rule",
			item:  model.FeedItem{Description: "technology news"},
			rules: []string{"tech*"},
			want:  true,
		},
		{
			name:  "prefix rule only at word start",
			item:  model.FeedItem{Description: "biotech news"},
			rules: []string{"tech*"},
			want:  false,
		},
		{
			name:  "suffix rule",
			item:  model.FeedItem{Title: "Big biotech merger"},
			rules: []string{"*tech"},
			want:  true,
		},
		{
			name:  "suffix rule only at word end",
			item:  model.FeedItem{Title: "technology"},
			rules: []string{"*tech"},
			want:  false,
		},
		{
			name:  "bare word needs boundaries",
			item:  model.FeedItem{Title: "What the CEO said"},
			rules: []string{"ai"},
			want:  false,
		},
		{
			name:  "bare word matches whole word",
			item:  model.FeedItem{Title: "New AI model"},
			rules: []string{"ai"},
			want:  true,
		},
		{
			name:  "bare word next to punctuation",
			item:  model.FeedItem{Title: "Is it (AI)?"},
			rules: []string{"ai"},
			want:  true,
		},
		{
			name:  "unicode word boundaries",
			item:  model.FeedItem{Title: "Ärger über Politik"},
			rules: []string{"über"},
			want:  true,
		},
		{
			name:  "matches author",
			item:  model.FeedItem{Title: "Post", Author: "Sponsored Writer"},
			rules: []string{"sponsored"},
			want:  true,
		},
		{
			name:  "matches categories",
			item:  model.FeedItem{Title: "Post", Categories: []string{"Crypto"}},
			rules: []string{"crypto"},
			want:  true,
		},
		{
			name:  "does not match guid",
			item:  model.FeedItem{Title: "Post", GUID: "crypto-123", ID: "f-crypto-123"},
			rules: []string{"crypto*"},
			want:  false,
		},
		{
			name:  "asterisk-only rules are ignored",
			item:  model.FeedItem{Title: "anything"},
			rules: []string{"*", "**", "  "},
			want:  false,
		},
		{
			name:  "regex metacharacters are literal",
			item:  model.FeedItem{Title: "c++ tips"},
			rules: []string{"*c++*"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hidden(tt.item, tt.rules)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Hidden mismatch (-want +got):\n%s", diff)
			}
			// Pure: same inputs, same answer.
			if again := Hidden(tt.item, tt.rules); again != got {
				t.Errorf("Hidden is not stable: %v then %v", got, again)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name    string
		global  []string
		perFeed []string
		want    []string
	}{
		{name: "both empty", want: nil},
		{
			name:    "union keeps order, global first",
			global:  []string{"spam", "ads*"},
			perFeed: []string{"crypto"},
			want:    []string{"spam", "ads*", "crypto"},
		},
		{
			name:    "case folded duplicates dropped",
			global:  []string{"Spam", " "},
			perFeed: []string{"SPAM", "spam ", "*AI*"},
			want:    []string{"Spam", "*AI*"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Combine(tt.global, tt.perFeed)); diff != "" {
				t.Errorf("Combine mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		raw      string
		wantWord string
		wantMode Mode
		wantOK   bool
	}{
		{raw: "*Spam*", wantWord: "spam", wantMode: ModeSubstring, wantOK: true},
		{raw: "tech*", wantWord: "tech", wantMode: ModePrefix, wantOK: true},
		{raw: "*ware", wantWord: "ware", wantMode: ModeSuffix, wantOK: true},
		{raw: " ai ", wantWord: "ai", wantMode: ModeWord, wantOK: true},
		{raw: "***", wantOK: false},
		{raw: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r, ok := ParseRule(tt.raw)
			if diff := cmp.Diff(tt.wantOK, ok); diff != "" {
				t.Fatalf("ok mismatch (-want +got):\n%s", diff)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.wantWord, r.Word); diff != "" {
				t.Errorf("word mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantMode, r.Mode); diff != "" {
				t.Errorf("mode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatcherReason(t *testing.T) {
	m := Compile([]string{"crypto", "*spam*"})
	reason, hidden := m.Reason(model.FeedItem{Title: "spam offer"})
	if !hidden {
		t.Fatal("expected item to be hidden")
	}
	if diff := cmp.Diff("*spam*", reason); diff != "" {
		t.Errorf("reason mismatch (-want +got):\n%s", diff)
	}
}
