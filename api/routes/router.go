package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openbillingstore/billing-core/api/controllers"
	ordercontrollers "github.com/openbillingstore/billing-core/api/controllers/orders"
	paymentcontrollers "github.com/openbillingstore/billing-core/api/controllers/payments"
	"github.com/openbillingstore/billing-core/api/middleware"
	"github.com/openbillingstore/billing-core/internal/orders"
	"github.com/openbillingstore/billing-core/internal/payments"
	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/metrics"
	"github.com/openbillingstore/billing-core/pkg/redis"
)

// Params carries the collaborators the API routes need.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Orders      orders.Service
	Payments    payments.Service
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(middleware.CORSOptions{
			AllowedOrigins:    cfg.HTTP.CORSOrigins,
			IdempotencyHeader: cfg.Eventing.HTTPIdempotencyHeader,
			MaxAge:            cfg.HTTP.CORSMaxAge,
		}),
		middleware.Metrics(p.Metrics),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Tenant(logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Idempotency(p.Idempotency, middleware.IdempotencyOptions{
				Header: cfg.Eventing.HTTPIdempotencyHeader,
				TTL:    cfg.Eventing.HTTPIdempotencyTTL,
			}, logg))

			r.Post("/orders/init", ordercontrollers.Init(p.Orders, logg))

			r.Route("/payments", func(r chi.Router) {
				r.Post("/pay", paymentcontrollers.Pay(p.Payments, logg))
				r.Get("/gateways", paymentcontrollers.Gateways(p.Payments))
				r.Get("/types", paymentcontrollers.Types())
				r.Get("/user/{userId}", paymentcontrollers.ListByUser(p.Payments, logg))
				r.Get("/status/{status}", paymentcontrollers.ListByStatus(p.Payments, logg))
				r.Get("/{paymentId}", paymentcontrollers.Retrieve(p.Payments, logg))
				r.Post("/{paymentId}/confirm", paymentcontrollers.Confirm(p.Payments, logg))
				r.Post("/{paymentId}/cancel", paymentcontrollers.Cancel(p.Payments, logg))
				r.Post("/{paymentId}/refund", paymentcontrollers.Refund(p.Payments, logg))
			})

			r.Route("/subscriptions/{subscriptionId}", func(r chi.Router) {
				r.Get("/", paymentcontrollers.RetrieveSubscription(p.Payments, logg))
				r.Put("/", paymentcontrollers.UpdateSubscription(p.Payments, logg))
				r.Post("/cancel", paymentcontrollers.CancelSubscription(p.Payments, logg))
				r.Get("/payments", paymentcontrollers.SubscriptionPayments(p.Payments, logg))
			})
		})
	})

	return r
}
