package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openbillingstore/billing-core/api/controllers"
	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/logger"
)

// NewProbeRouter serves health and metrics for the background workers.
func NewProbeRouter(cfg *config.Config, logg *logger.Logger, deps map[string]controllers.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
