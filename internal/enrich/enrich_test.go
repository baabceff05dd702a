package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeFetcher struct {
	pages       map[string]string
	err         error
	lastTimeout time.Duration
}

func (f *fakeFetcher) FetchWithin(_ context.Context, target string, timeout time.Duration) (string, error) {
	f.lastTimeout = timeout
	if f.err != nil {
		return "", f.err
	}
	return f.pages[target], nil
}

func TestOGImage(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "property attribute",
			doc:  `<html><head><meta property="og:image" content=" https://e.com/a.png "></head></html>`,
			want: "https://e.com/a.png",
		},
		{
			name: "image url variant",
			doc:  `<head><meta property="og:image:url" content="/b.jpg"/></head>`,
			want: "/b.jpg",
		},
		{
			name: "name attribute",
			doc:  `<head><meta content="c.webp" name="OG:IMAGE"></head>`,
			want: "c.webp",
		},
		{
			name: "ignores other meta",
			doc:  `<head><meta property="og:title" content="x"><meta charset="utf-8"></head>`,
			want: "",
		},
		{
			name: "stops at end of head",
			doc:  `<head></head><body><meta property="og:image" content="late.png"></body>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, OGImage(tt.doc)); diff != "" {
				t.Errorf("OGImage mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFind(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://news.example.com/posts/1": `<head><meta property="og:image" content="../img/1.png"></head>`,
		"https://news.example.com/posts/2": `<head><title>none</title></head>`,
	}}
	finder := New(f, 0)

	got, err := finder.Find(context.Background(), "https://news.example.com/posts/1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if diff := cmp.Diff("https://news.example.com/img/1.png", got); diff != "" {
		t.Errorf("image mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DefaultTimeout, f.lastTimeout); diff != "" {
		t.Errorf("timeout mismatch (-want +got):\n%s", diff)
	}

	if _, err := finder.Find(context.Background(), "https://news.example.com/posts/2"); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}
	if _, err := finder.Find(context.Background(), ""); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage for empty link, got %v", err)
	}
}

func TestFindFetchError(t *testing.T) {
	boom := errors.New("boom")
	finder := New(&fakeFetcher{err: boom}, time.Second)
	if _, err := finder.Find(context.Background(), "https://e.com"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped fetch error, got %v", err)
	}
}
