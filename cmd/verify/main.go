package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"

	"feedsync/internal/sources"
	"feedsync/internal/verify"
)

type options struct {
	SourcesFile string        `long:"sources" env:"SOURCES_FILE" default:"./feeds.yaml" description:"YAML file listing feed sources"`
	Output      string        `long:"output" default:"verified_feeds.yaml" description:"Where to write the sources that passed"`
	LogFile     string        `long:"log" default:"verification_errors.log" description:"Where to write the error log"`
	Workers     int           `long:"workers" default:"20" description:"Concurrent checks"`
	Timeout     time.Duration `long:"timeout" default:"10s" description:"Bound for a single request"`
	UserAgent   string        `long:"user-agent" default:"Mozilla/5.0 RSS Feed Validator" description:"User agent for probe requests"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	srcs, err := sources.Load(opts.SourcesFile)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d feeds. Starting verification...\n", len(srcs))

	checker := verify.New(nil, opts.Timeout, opts.UserAgent, opts.Workers)
	report := checker.VerifySources(ctx, srcs)

	out, err := yaml.Marshal(sources.File{Feeds: report.Verified})
	if err != nil {
		return fmt.Errorf("encode verified feeds: %w", err)
	}
	if err := os.WriteFile(opts.Output, out, 0o600); err != nil {
		return fmt.Errorf("write verified feeds: %w", err)
	}

	logFile, err := os.Create(opts.LogFile)
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	if err := report.WriteLog(logFile); err != nil {
		_ = logFile.Close()
		return fmt.Errorf("write log: %w", err)
	}
	if err := logFile.Close(); err != nil {
		return fmt.Errorf("close log: %w", err)
	}

	fmt.Println("\nVerification complete!")
	fmt.Printf("Total feeds: %d\n", report.Total)
	fmt.Printf("Verified feeds: %d\n", len(report.Verified))
	fmt.Printf("Failed feeds: %d\n", report.Failed())
	fmt.Printf("\nVerified feeds saved to: %s\n", opts.Output)
	fmt.Printf("Error log saved to: %s\n", opts.LogFile)
	return nil
}
