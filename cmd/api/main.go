package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/internal/completions"
	"github.com/angelmondragon/storefront-checkout/internal/events"
	"github.com/angelmondragon/storefront-checkout/internal/financing"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/review"
	"github.com/angelmondragon/storefront-checkout/internal/sessionstore"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/internal/wallet"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/pubsub"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/angelmondragon/storefront-checkout/pkg/square"
	"github.com/angelmondragon/storefront-checkout/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "checkout-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "checkout-api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "checkout api stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	closers = append(closers, redisClient)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	commerceClient := commerce.NewClient(cfg.Commerce, nil)
	records := sessionstore.New(redisClient, cfg.Checkout.SessionTTL)
	cards := financing.NewStore(records, logg)
	catalog := payments.NewCatalog(cfg.Providers)
	orchestrator := payments.NewOrchestrator(commerceClient, catalog, records, cards, logg)

	charger, err := newCharger(ctx, cfg, logg)
	if err != nil {
		return err
	}

	var intents review.IntentConfirmer
	if cfg.Stripe.Enabled() {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return err
		}
		intents = stripeClient
	}

	var publisher review.EventPublisher
	switch {
	case cfg.Outbox.Enabled:
		publisher = events.NewOutboxWriter(dbClient, outbox.NewService(outbox.NewRepository(dbClient.DB()), logg), logg)
	case cfg.PubSub.Enabled():
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		closers = append(closers, psClient)
		publisher = events.NewPublisher(psClient.CheckoutPublisher(), logg)
	default:
		publisher = events.NewPublisher(nil, logg)
	}

	reviewService, err := review.NewService(review.Deps{
		Backend:   commerceClient,
		Payments:  orchestrator,
		Cards:     cards,
		Records:   records,
		Charger:   charger,
		Intents:   intents,
		Audit:     completions.NewRepository(dbClient.DB()),
		Publisher: publisher,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	handler := routes.NewRouter(cfg, logg, dbClient, redisClient, registry, routes.Services{
		Carts:    commerceClient,
		Options:  shipping.NewResolver(commerceClient, checkoutMetrics, logg),
		Selector: shipping.NewSelector(commerceClient, checkoutMetrics, logg).
			WithLocker(shipping.NewRedisCartLock(redisClient, cfg.Checkout.ShippingLockTTL, cfg.Checkout.ShippingLockWait)),
		Payments: orchestrator,
		Review:   reviewService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    id,
		"wallet_mode": cfg.Wallet.Mode(),
		"outbox":      cfg.Outbox.Enabled,
	})
	logg.Info(logCtx, "starting checkout api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down checkout api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newCharger picks the wallet charge backend from configuration.
func newCharger(ctx context.Context, cfg *config.Config, logg *logger.Logger) (wallet.Charger, error) {
	if cfg.Wallet.Mode() == config.WalletChargeSquare {
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, err
		}
		return wallet.NewSquareCharger(client), nil
	}
	charger, err := wallet.NewEndpointCharger(cfg.Wallet.ChargeURL, nil, logg)
	if err != nil {
		return nil, err
	}
	return charger, nil
}
