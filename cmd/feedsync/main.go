package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"feedsync/internal/actor"
	"feedsync/internal/api"
	"feedsync/internal/config"
	"feedsync/internal/enrich"
	"feedsync/internal/gate"
	"feedsync/internal/notify"
	"feedsync/internal/pipeline"
	"feedsync/internal/protocol"
	"feedsync/internal/relay"
	"feedsync/internal/sources"
	"feedsync/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("feedsync stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	store, err := openStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	syncSources(ctx, cfg.SourcesFile, store, log)

	rc, err := relay.New(&http.Client{}, cfg.RelayURL)
	if err != nil {
		return fmt.Errorf("create relay client: %w", err)
	}
	rc.SetTimeout(cfg.FetchTimeout)
	rc.SetUserAgent(cfg.UserAgent)

	base := pipeline.Config{
		Fetcher:            rc,
		Store:              store,
		Coordinator:        gate.NewCoordinator(gate.Chain{gate.NewLocal(), gate.NewLease(store, cfg.GateLeaseTTL)}, log),
		GlobalIgnoredWords: cfg.GlobalIgnoredWords,
		BatchSize:          cfg.BatchSize,
	}
	if cfg.EnrichImages {
		base.Images = enrich.New(rc, cfg.ImageTimeout)
	}

	// The notifier needs the page actor, so sinks is completed after the
	// actors are built and before they run.
	sinks := protocol.Fanout{protocol.NewLogSink(log)}
	var notifier *notify.Notifier
	newActor := func(name string, periodic time.Duration) *actor.Actor {
		return actor.New(actor.Config{
			Name:            name,
			Pipeline:        base,
			RetryBase:       cfg.RetryBase,
			MaxRetries:      cfg.MaxRetries,
			Sink:            protocol.SinkFunc(func(e protocol.Event) { sinks.Emit(e) }),
			Log:             log,
			DefaultInterval: cfg.DefaultUpdateInterval(),
			Periodic:        periodic,
		})
	}
	page := newActor("page", 0)
	background := newActor("background", cfg.BackgroundInterval)

	if cfg.TelegramEnabled() {
		notifier, err = notify.New(cfg.TelegramBotToken, cfg.TelegramChatID, store, page, log)
		if err != nil {
			return fmt.Errorf("create notifier: %w", err)
		}
		sinks = append(sinks, notifier)
	}

	var wg sync.WaitGroup
	for _, a := range []*actor.Actor{page, background} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Run(ctx)
		}()
	}
	if notifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifier.Run(ctx)
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	feeds, err := store.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}
	for _, cmd := range []protocol.Command{protocol.SetFeeds{Feeds: feeds}, protocol.RefreshSchedules{}} {
		if err := page.Send(cmd); err != nil {
			return fmt.Errorf("start schedules: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(api.NewHandler(store, page, background, cfg.DefaultUpdateInterval(), log), cfg.APIKey, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting feedsync", "listen", cfg.ListenAddr, "feeds", len(feeds), "telegram", notifier != nil)
	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		log.Info("shutting down")
		return nil
	}
	return fmt.Errorf("serve api: %w", err)
}

func openStore(path string) (storage.Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	store, err := storage.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

func syncSources(ctx context.Context, path string, store storage.Storage, log *slog.Logger) {
	srcs, err := sources.Load(path)
	if errors.Is(err, sources.ErrNoFile) {
		log.Info("no sources file, keeping stored feeds", "path", path)
		return
	}
	if err != nil {
		log.Error("load sources", "path", path, "error", err)
		return
	}
	res, err := sources.Sync(ctx, store, srcs)
	if err != nil {
		log.Error("sync sources", "error", err)
		return
	}
	log.Info("sources synced", "upserted", res.Upserted, "removed", len(res.Removed))
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
