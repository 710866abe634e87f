// Package migrate applies the checkout schema with goose. The SQL files are
// embedded so every binary can migrate without a checkout of the repo.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

// SourceDir is where `cmd/migrate -cmd=create` writes new files.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the embedded migration files rooted at their directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// DialectFor maps the configured database driver to a goose dialect.
func DialectFor(driver string) goose.Dialect {
	if driver == config.DBDriverSQLite {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Runner applies one migration source to one database.
type Runner struct {
	provider *goose.Provider
}

// NewRunner builds a Runner over fsys; a nil fsys means the embedded files.
func NewRunner(db *sql.DB, driver string, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		fsys = Migrations()
	}
	provider, err := goose.NewProvider(DialectFor(driver), db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Up applies every pending migration and returns how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}

// Down rolls back the latest applied migration.
func (r *Runner) Down(ctx context.Context) error {
	if _, err := r.provider.Down(ctx); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Version returns the latest applied version, 0 for an empty database.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	v, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return v, nil
}

// MigrateTo moves the schema up or down to target (YYYYMMDDHHMMSS).
func (r *Runner) MigrateTo(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := r.Version(ctx)
	if err != nil {
		return err
	}
	switch {
	case current == version:
		return nil
	case current < version:
		if _, err := r.provider.UpTo(ctx, version); err != nil {
			return fmt.Errorf("goose up-to %d: %w", version, err)
		}
	default:
		if _, err := r.provider.DownTo(ctx, version); err != nil {
			return fmt.Errorf("goose down-to %d: %w", version, err)
		}
	}
	return nil
}

// WriteStatus prints one row per migration: version, state and apply time.
func (r *Runner) WriteStatus(ctx context.Context, w io.Writer) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
	}
	return tw.Flush()
}
