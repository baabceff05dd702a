package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"feedsync/internal/model"
	"feedsync/internal/storage"
)

const sampleYAML = `
feeds:
  - id: tech
    url: https://tech.example.com/rss
    title: Tech Daily
    tags: [news, tech, news]
    ignored_words: ["*spam*", crypto]
    update_interval: 15
  - url: " https://blog.example.com/atom.xml "
    main_url: https://blog.example.com
    active: false
`

var _ Store = storage.Storage(nil)

func TestParse(t *testing.T) {
	got, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var feeds []model.FeedSource
	for _, s := range got {
		feeds = append(feeds, s.Feed())
	}
	want := []model.FeedSource{
		{
			ID:             "tech",
			URL:            "https://tech.example.com/rss",
			Title:          "Tech Daily",
			Tags:           []string{"news", "tech"},
			IgnoredWords:   []string{"*spam*", "crypto"},
			UpdateInterval: 15,
			IsActive:       true,
		},
		{
			ID:    ID("https://blog.example.com/atom.xml"),
			URL:   "https://blog.example.com/atom.xml",
			Title: "https://blog.example.com/atom.xml",
		},
	}
	if diff := cmp.Diff(want, feeds); diff != "" {
		t.Errorf("feeds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://blog.example.com", got[1].MainURL); diff != "" {
		t.Errorf("main url mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing url", yaml: "feeds:\n  - title: x\n"},
		{name: "relative url", yaml: "feeds:\n  - url: /rss\n"},
		{name: "unsupported scheme", yaml: "feeds:\n  - url: ftp://e.com/rss\n"},
		{name: "negative interval", yaml: "feeds:\n  - url: https://e.com/rss\n    update_interval: -1\n"},
		{name: "duplicate url", yaml: "feeds:\n  - url: https://e.com/rss\n  - url: https://e.com/rss\n"},
		{name: "broken yaml", yaml: "feeds: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestIDIsStable(t *testing.T) {
	a := ID("https://e.com/rss")
	if a != ID("https://e.com/rss") {
		t.Error("id must be deterministic")
	}
	if a == ID("https://e.com/atom") {
		t.Error("different urls must produce different ids")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feeds.yaml")
	if _, err := Load(path); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}

	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(2, len(got)); diff != "" {
		t.Errorf("count mismatch (-want +got):\n%s", diff)
	}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	old := model.FeedSource{ID: "old", URL: "https://old.com/rss", IsActive: true}
	if err := store.UpsertFeed(ctx, &old); err != nil {
		t.Fatalf("create: %v", err)
	}

	srcs, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := Sync(ctx, store, srcs)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if diff := cmp.Diff(SyncResult{Upserted: 2, Removed: []string{"old"}}, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	stored, err := store.ListFeeds(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var want []model.FeedSource
	for _, s := range srcs {
		want = append(want, s.Feed())
	}
	sortByID := cmpopts.SortSlices(func(a, b model.FeedSource) bool { return a.ID < b.ID })
	ignoreTS := cmpopts.IgnoreFields(model.FeedSource{}, "CreatedAt", "LastUpdated")
	if diff := cmp.Diff(want, stored, sortByID, ignoreTS); diff != "" {
		t.Errorf("stored feeds mismatch (-want +got):\n%s", diff)
	}

	again, err := Sync(ctx, store, srcs)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(again.Removed) != 0 {
		t.Errorf("second sync removed %v", again.Removed)
	}
}
