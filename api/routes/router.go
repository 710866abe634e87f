package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	checkoutcontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/checkout"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// Services groups what the checkout routes call into.
type Services struct {
	Carts    checkoutcontrollers.CartReader
	Options  checkoutcontrollers.ShippingOptions
	Selector checkoutcontrollers.ShippingSelector
	Payments checkoutcontrollers.PaymentService
	Review   checkoutcontrollers.ReviewService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Checkout.AllowedOrigins),
	)

	ready := map[string]controllers.Pinger{"db": dbP}
	if redisClient != nil {
		ready["redis"] = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, ready, logg))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	var idempotencyStore middleware.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = redisClient
	}

	r.Route("/api/v1/checkout/{"+checkoutcontrollers.CartURLParam+"}", func(r chi.Router) {
		r.Use(middleware.CheckoutSession(cfg.Checkout, logg))

		r.Get("/", checkoutcontrollers.StepView(svc.Carts, svc.Review, logg))

		r.Route("/shipping", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.ShippingView(svc.Carts, svc.Options, svc.Selector, logg))
			r.Post("/", checkoutcontrollers.ShippingSelect(svc.Carts, svc.Selector, logg))
			r.Post("/submit", checkoutcontrollers.ShippingSubmit(svc.Carts, logg))
		})

		r.Route("/payment", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.PaymentView(svc.Carts, svc.Payments, logg))
			r.Post("/provider", checkoutcontrollers.PaymentSelectProvider(svc.Carts, svc.Payments, logg))
			r.Post("/card", checkoutcontrollers.PaymentCard(svc.Carts, svc.Payments, logg))
			r.Post("/wallet/instrument", checkoutcontrollers.WalletInstrument(svc.Carts, svc.Payments, logg))
			r.Post("/wallet/error", checkoutcontrollers.WalletError(svc.Carts, svc.Payments, logg))
			r.Post("/submit", checkoutcontrollers.PaymentSubmit(svc.Carts, svc.Payments, logg))
		})

		r.Get("/review", checkoutcontrollers.ReviewView(svc.Carts, svc.Review, logg))
		r.With(middleware.Idempotency(idempotencyStore, logg)).
			Post("/review/complete", checkoutcontrollers.ReviewComplete(svc.Review, logg))
		r.Get("/confirmation/financing", checkoutcontrollers.ConfirmationFinancing(svc.Review, logg))
		r.Get("/completions", checkoutcontrollers.Completions(svc.Review, logg))
	})

	return r
}
