package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	_ "modernc.org/sqlite"

	"feedsync/migrations"
)

type options struct {
	DatabasePath string `long:"db" env:"DATABASE_PATH" default:"./data/feedsync.db" description:"Path to the sqlite database"`

	Args struct {
		Command string   `positional-arg-name:"command" description:"up, up-by-one, up-to, down, down-to, redo, reset, status or version"`
		Rest    []string `positional-arg-name:"args"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[--db path] <command> [args]"
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Args.Command == "" {
		parser.WriteHelp(os.Stderr)
		fmt.Fprintf(os.Stderr, "\nCommands: %s\n", strings.Join(migrations.Commands, ", "))
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", opts.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := log.New(os.Stdout, "", 0)
	if err := migrations.Exec(context.Background(), db, logger, opts.Args.Command, opts.Args.Rest...); err != nil {
		_ = db.Close()
		log.Fatal(err)
	}
}
