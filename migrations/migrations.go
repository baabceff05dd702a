// Package migrations embeds the SQL schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"slices"

	"github.com/pressly/goose/v3"
)

// FS contains the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS

func setup() error {
	goose.SetBaseFS(FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Run applies all pending migrations to the given database.
func Run(db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Version returns the schema version currently applied to db.
func Version(db *sql.DB) (int64, error) {
	if err := setup(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

// Commands lists the goose commands Exec accepts. Commands that write
// migration files are excluded because the migrations are embedded.
var Commands = []string{"up", "up-by-one", "up-to", "down", "down-to", "redo", "reset", "status", "version"}

// Exec runs a goose command against db, logging to logger.
func Exec(ctx context.Context, db *sql.DB, logger goose.Logger, command string, args ...string) error {
	if !slices.Contains(Commands, command) {
		return fmt.Errorf("unknown command %q", command)
	}
	if err := setup(); err != nil {
		return err
	}
	goose.SetLogger(logger)
	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}
