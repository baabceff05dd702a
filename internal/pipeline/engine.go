// Package pipeline runs feed update cycles: fetch, normalize, filter,
// deduplicate and persist.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"feedsync/internal/dedup"
	"feedsync/internal/filter"
	"feedsync/internal/gate"
	"feedsync/internal/model"
	"feedsync/internal/normalize"
	"feedsync/internal/protocol"
	"feedsync/internal/retry"
)

const (
	// DefaultBatchSize is the number of feeds updated concurrently in bulk.
	DefaultBatchSize = 3

	enrichParallelism = 4
)

// Fetcher retrieves a feed document.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) (string, error)
}

// ImageFinder resolves a preview image for an article page.
type ImageFinder interface {
	Find(ctx context.Context, pageURL string) (string, error)
}

// Store is the persistence the engine needs.
type Store interface {
	GetFeed(ctx context.Context, id string) (*model.FeedSource, error)
	ListActiveFeeds(ctx context.Context) ([]model.FeedSource, error)
	GUIDs(ctx context.Context, feedID string) (map[string]struct{}, error)
	InsertItems(ctx context.Context, items []model.FeedItem) (int, error)
	SetLastUpdated(ctx context.Context, feedID string, at time.Time) error
}

// Config wires an Engine.
type Config struct {
	Fetcher     Fetcher
	Store       Store
	Coordinator *gate.Coordinator
	Retry       *retry.Controller
	Sink        protocol.Sink
	Log         *slog.Logger

	// Images enables enrichment when non-nil.
	Images             ImageFinder
	GlobalIgnoredWords []string
	BatchSize          int
}

// Result summarizes a successful cycle.
type Result struct {
	FeedID      string
	NewItems    int
	TotalItems  int
	HiddenItems int
}

// Engine updates feeds.
type Engine struct {
	fetcher     Fetcher
	images      ImageFinder
	store       Store
	coord       *gate.Coordinator
	retry       *retry.Controller
	sink        protocol.Sink
	log         *slog.Logger
	normalizer  *normalize.Normalizer
	globalWords []string
	batchSize   int
	now         func() time.Time
}

// New creates an Engine.
func New(cfg Config) *Engine {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	sink := cfg.Sink
	if sink == nil {
		sink = protocol.Fanout(nil)
	}
	coord := cfg.Coordinator
	if coord == nil {
		coord = gate.NewCoordinator(nil, cfg.Log)
	}
	rc := cfg.Retry
	if rc == nil {
		rc = retry.New(retry.DefaultBase, retry.DefaultCeiling, cfg.Log)
	}
	return &Engine{
		fetcher:     cfg.Fetcher,
		images:      cfg.Images,
		store:       cfg.Store,
		coord:       coord,
		retry:       rc,
		sink:        sink,
		log:         cfg.Log,
		normalizer:  normalize.New(),
		globalWords: cfg.GlobalIgnoredWords,
		batchSize:   batch,
		now:         time.Now,
	}
}

// Cycle runs one update of feed without retry handling.
func (e *Engine) Cycle(ctx context.Context, feed model.FeedSource) (Result, error) {
	e.progress(feed.ID, StageFetching)
	body, err := e.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return Result{}, &StageError{Stage: StageFetching, Err: err}
	}

	e.progress(feed.ID, StageParsing)
	if !normalize.LooksLikeFeed(body) {
		return Result{}, &StageError{Stage: StageParsing, Err: fmt.Errorf("body of %s: %w", feed.URL, model.ErrInvalidFormat)}
	}
	items, err := e.normalizer.Normalize(body)
	if err != nil {
		return Result{}, &StageError{Stage: StageParsing, Err: err}
	}
	for i := range items {
		items[i].FeedID = feed.ID
		items[i].ID = model.ItemID(feed.ID, items[i].GUID)
	}

	e.progress(feed.ID, StageFiltering)
	matcher := filter.Compile(filter.Combine(e.globalWords, feed.IgnoredWords))
	for i := range items {
		items[i].IsHidden = matcher.Hidden(items[i])
	}
	e.enrich(ctx, items)

	e.progress(feed.ID, StagePersisting)
	res := Result{FeedID: feed.ID, TotalItems: len(items)}
	err = e.coord.WithFeed(ctx, feed.ID, func(ctx context.Context) error {
		known, err := e.store.GUIDs(ctx, feed.ID)
		if err != nil {
			return &model.StorageError{Op: "read guids", Err: err}
		}
		fresh := dedup.NewItems(items, known)
		n, err := e.store.InsertItems(ctx, fresh)
		if err != nil {
			return &model.StorageError{Op: "insert items", Err: err}
		}
		if err := e.store.SetLastUpdated(ctx, feed.ID, e.now()); err != nil {
			return &model.StorageError{Op: "set last updated", Err: err}
		}
		res.NewItems = n
		for _, it := range fresh {
			if it.IsHidden {
				res.HiddenItems++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, &StageError{Stage: StagePersisting, Err: err}
	}

	e.progress(feed.ID, StageComplete)
	return res, nil
}

// Run loads the feed, runs a cycle and reports the outcome as events.
// Transient failures are handed to the retry controller. It reports
// whether the cycle succeeded.
func (e *Engine) Run(ctx context.Context, feedID string) bool {
	feed, err := e.store.GetFeed(ctx, feedID)
	if err != nil {
		e.log.Error("load feed", "feed_id", feedID, "error", err)
		e.sink.Emit(protocol.Failed{
			FeedID:      feedID,
			Message:     err.Error(),
			Attempt:     e.retry.Attempts(feedID),
			MaxAttempts: e.retry.Ceiling(),
		})
		return false
	}
	return e.run(ctx, *feed)
}

func (e *Engine) run(ctx context.Context, feed model.FeedSource) bool {
	res, err := e.Cycle(ctx, feed)
	if err == nil {
		e.retry.OnSuccess(feed.ID)
		e.sink.Emit(protocol.Completed{
			FeedID:      res.FeedID,
			NewItems:    res.NewItems,
			TotalItems:  res.TotalItems,
			HiddenItems: res.HiddenItems,
		})
		return true
	}

	if ctx.Err() != nil {
		e.log.Info("update cancelled", "feed_id", feed.ID, "error", err)
		e.sink.Emit(protocol.Failed{
			FeedID:      feed.ID,
			Message:     err.Error(),
			Attempt:     e.retry.Attempts(feed.ID),
			MaxAttempts: e.retry.Ceiling(),
		})
		return false
	}

	d := e.retry.OnFailure(feed.ID, err, func() { e.Run(ctx, feed.ID) })
	if d.Retry {
		e.sink.Emit(protocol.Progress{
			FeedID: feed.ID,
			Status: fmt.Sprintf("Retrying in %s (attempt %d/%d)", d.Delay, d.Attempt, d.Ceiling),
		})
		return false
	}

	e.log.Error("update failed", "feed_id", feed.ID, "attempt", d.Attempt, "error", err)
	e.sink.Emit(protocol.Failed{
		FeedID:      feed.ID,
		Message:     err.Error(),
		Attempt:     d.Attempt,
		MaxAttempts: d.Ceiling,
	})
	return false
}

// UpdateAll updates every active feed in batches. Feeds of one batch run
// concurrently and the next batch starts once the whole batch finished.
// One feed's failure never stops the others.
func (e *Engine) UpdateAll(ctx context.Context) (protocol.BulkSummary, error) {
	feeds, err := e.store.ListActiveFeeds(ctx)
	if err != nil {
		return protocol.BulkSummary{}, fmt.Errorf("list active feeds: %w", err)
	}

	summary := protocol.BulkSummary{Total: len(feeds)}
	var mu sync.Mutex

	for start := 0; start < len(feeds); start += e.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+e.batchSize, len(feeds))

		var g errgroup.Group
		for _, feed := range feeds[start:end] {
			g.Go(func() error {
				ok := e.run(ctx, feed)

				mu.Lock()
				defer mu.Unlock()
				summary.Completed++
				if !ok {
					summary.Failed++
				}
				e.sink.Emit(protocol.BulkProgress{Completed: summary.Completed, Total: summary.Total})
				return nil
			})
		}
		_ = g.Wait()
	}

	e.sink.Emit(summary)
	return summary, nil
}

func (e *Engine) enrich(ctx context.Context, items []model.FeedItem) {
	if e.images == nil {
		return
	}
	var g errgroup.Group
	g.SetLimit(enrichParallelism)
	for i := range items {
		if items[i].OGImage != "" || items[i].Link == "" {
			continue
		}
		g.Go(func() error {
			img, err := e.images.Find(ctx, items[i].Link)
			if err != nil {
				e.log.Debug("image enrichment skipped", "link", items[i].Link, "error", err)
				return nil
			}
			items[i].OGImage = img
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) progress(feedID string, s Stage) {
	e.sink.Emit(protocol.Progress{FeedID: feedID, Percent: s.Percent(), Status: s.String()})
}
