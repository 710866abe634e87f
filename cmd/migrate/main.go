package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
)

const serviceName = "checkout-migrate"

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|to|create|validate")
	dir := flag.String("dir", migrate.SourceDir, "migration source directory for create and validate")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	// create and validate work on the source tree and need no config
	switch *cmd {
	case "create":
		path, err := migrate.Create(*dir, *name, time.Now())
		exitOn(err, "create migration")
		fmt.Println("created migration:", path)
		return
	case "validate":
		exitOn(migrate.Validate(os.DirFS(*dir)), "validate migrations")
		fmt.Println("migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn(err, "load config")

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"cmd":     *cmd,
		"dialect": string(migrate.DialectFor(cfg.DB.Driver)),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(err, "connect database")
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	exitOn(err, "sql handle")
	runner, err := migrate.NewRunner(sqlDB, cfg.DB.Driver, nil)
	exitOn(err, "migration runner")

	switch *cmd {
	case "up":
		applied, err := runner.Up(ctx)
		exitOn(err, "migrate up")
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
	case "down":
		exitOn(runner.Down(ctx), "migrate down")
		logg.Info(ctx, "rolled back latest migration")
	case "status":
		exitOn(runner.WriteStatus(ctx, os.Stdout), "migration status")
	case "version":
		v, err := runner.Version(ctx)
		exitOn(err, "read version")
		fmt.Println(v)
	case "to":
		if *target == "" {
			exitOn(fmt.Errorf("-version is required"), "migrate to version")
		}
		exitOn(runner.MigrateTo(ctx, *target), "migrate to version")
	default:
		exitOn(fmt.Errorf("unknown -cmd %q", *cmd), "parse flags")
	}
}

func exitOn(err error, step string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %s: %v\n", serviceName, step, err)
	os.Exit(1)
}
