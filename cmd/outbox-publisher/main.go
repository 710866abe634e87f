package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-checkout/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	listDLQ := flag.Int("dlq", 0, "print the N most recent dead-lettered events and exit")
	requeue := flag.String("requeue", "", "move the dead-lettered event with this id back to the outbox and exit")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address while running")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	if *listDLQ > 0 {
		if err := printDLQ(context.Background(), logg, dlqRepo, *listDLQ); err != nil {
			logg.Error(context.Background(), "failed to list dead letters", err)
			os.Exit(1)
		}
		return
	}

	if *requeue != "" {
		ctx := logg.WithField(context.Background(), "event_id", *requeue)
		found, err := dlqRepo.Requeue(ctx, *requeue)
		if err != nil {
			logg.Error(ctx, "failed to requeue dead letter", err)
			os.Exit(1)
		}
		if !found {
			logg.Warn(ctx, "no dead letter found for event")
			os.Exit(1)
		}
		logg.Info(ctx, "dead letter requeued")
		return
	}

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	reg := prometheus.NewRegistry()
	relay, err := NewRelay(RelayParams{
		Outbox:     cfg.Outbox,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
		DLQ:        dlqRepo,
		Metrics:    metrics.NewOutboxMetrics(reg),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox relay", err)
		os.Exit(1)
	}
	defer relay.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
		"topic":       cfg.PubSub.CheckoutTopic,
	})
	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics server stopped", err)
			}
		}()
		defer srv.Close()
	}

	logg.Info(ctx, "starting outbox publisher")

	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

type dlqLister interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
}

func printDLQ(ctx context.Context, logg *logger.Logger, repo dlqLister, limit int) error {
	rows, err := repo.List(ctx, limit)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fields := map[string]any{
			"event_id":      row.EventID,
			"event_type":    row.EventType,
			"cart_id":       row.AggregateID,
			"error_reason":  row.ErrorReason,
			"attempt_count": row.AttemptCount,
			"failed_at":     row.FailedAt,
		}
		if row.ErrorMessage != nil {
			fields["error_message"] = *row.ErrorMessage
		}
		logg.Info(logg.WithFields(ctx, fields), "dead-lettered outbox event")
	}
	logg.Info(logg.WithField(ctx, "count", len(rows)), "dead letter listing complete")
	return nil
}
