package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"

	"github.com/openbillingstore/billing-core/api/routes"
	"github.com/openbillingstore/billing-core/internal/catalog"
	"github.com/openbillingstore/billing-core/internal/gateway/providers"
	"github.com/openbillingstore/billing-core/internal/orders"
	"github.com/openbillingstore/billing-core/internal/payments"
	"github.com/openbillingstore/billing-core/internal/pricing"
	"github.com/openbillingstore/billing-core/internal/subscriptions"
	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/displayformat"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/metrics"
	"github.com/openbillingstore/billing-core/pkg/migrate"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.LogFormat == logger.FormatConsole,
	})
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gatewayRegistry, err := providers.Registry(ctx, cfg, logg, metrics.NewGatewayMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logg.Error(ctx, "failed to build gateway registry", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	catalogRepo := catalog.NewRepository(conn)
	pricingRepo := pricing.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersRepo := orders.NewRepository(conn)

	prices, err := pricing.NewPriceResolver(pricingRepo, nil)
	if err != nil {
		logg.Error(ctx, "failed to create price resolver", err)
		os.Exit(1)
	}
	taxes, err := pricing.NewTaxCalculator(pricingRepo)
	if err != nil {
		logg.Error(ctx, "failed to create tax calculator", err)
		os.Exit(1)
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repository: ordersRepo,
		Products:   catalogRepo,
		Users:      catalogRepo,
		Prices:     prices,
		Taxes:      taxes,
		Formatter:  displayformat.NewLocaleFormatter(),
		TxRunner:   dbClient,
		Outbox:     outboxService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repository: subscriptions.NewRepository(conn),
		Outbox:     outboxService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create subscriptions service", err)
		os.Exit(1)
	}
	paymentService, err := payments.NewService(payments.ServiceParams{
		Repository:    payments.NewRepository(conn),
		Orders:        ordersRepo,
		Subscriptions: subscriptionService,
		Users:         catalogRepo,
		Gateways:      gatewayRegistry,
		Journal:       payments.NewJournal(redisClient, cfg.Eventing.GatewayJournalTTL),
		TxRunner:      dbClient,
		Outbox:        outboxService,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payments service", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"providers": gatewayRegistry.Providers(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Orders:      ordersService,
			Payments:    paymentService,
			Gatherer:    prometheus.DefaultGatherer,
			Metrics:     metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
