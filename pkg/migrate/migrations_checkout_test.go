package migrate_test

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
)

func openSQLite(t *testing.T, name string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestEmbeddedMigrationsContainConstraints(t *testing.T) {
	matches, err := fs.Glob(migrate.Migrations(), "*_create_checkout_completions.sql")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := fs.ReadFile(migrate.Migrations(), matches[0])
	require.NoError(t, err)
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS checkout_completions",
		"CHECK (path IN ('wallet', 'generic'))",
		"ON checkout_completions (cart_id, created_at)",
		"DROP TABLE IF EXISTS checkout_completions",
	} {
		require.Contains(t, string(data), sub)
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Migrations()))
	require.NoError(t, migrate.Validate(os.DirFS("migrations")), "source tree and embedded copy must agree")
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"bad name":   {"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"no down":    {"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"down first": {"20260101000000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}},
		"unbalanced": {"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")}},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
	}
	for name, fsys := range tests {
		if err := migrate.Validate(fsys); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestRunnerUpDownAndStatusOnSQLite(t *testing.T) {
	conn := openSQLite(t, "migrate_runner")
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	ctx := context.Background()

	runner, err := migrate.NewRunner(sqlDB, config.DBDriverSQLite, nil)
	require.NoError(t, err)

	applied, err := runner.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, applied)
	for _, table := range []string{"checkout_completions", "outbox_events", "outbox_dlq"} {
		require.True(t, conn.Migrator().HasTable(table), "expected %s after up", table)
	}

	version, err := runner.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 20260301130000, version)

	var out bytes.Buffer
	require.NoError(t, runner.WriteStatus(ctx, &out))
	require.Contains(t, out.String(), "20260301120000_create_checkout_completions.sql")

	require.NoError(t, runner.Down(ctx))
	require.False(t, conn.Migrator().HasTable("outbox_events"))
	require.True(t, conn.Migrator().HasTable("checkout_completions"), "down only rolls back the latest migration")

	require.NoError(t, runner.MigrateTo(ctx, "20260301130000"))
	require.True(t, conn.Migrator().HasTable("outbox_dlq"))
	require.Error(t, runner.MigrateTo(ctx, "latest"))
}

func TestCreateWritesValidMigration(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	path, err := migrate.Create(dir, "Add Retained Charges!", at)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "20261016093000_add_retained_charges.sql"), path)
	require.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.Create(dir, "Add Retained Charges!", at)
	require.Error(t, err, "existing files must not be overwritten")
	_, err = migrate.Create(dir, "!!!", at)
	require.Error(t, err)
}
