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

	"github.com/openbillingstore/billing-core/api/controllers"
	"github.com/openbillingstore/billing-core/api/routes"
	"github.com/openbillingstore/billing-core/internal/catalog"
	"github.com/openbillingstore/billing-core/internal/cron"
	"github.com/openbillingstore/billing-core/internal/gateway/providers"
	"github.com/openbillingstore/billing-core/internal/orders"
	"github.com/openbillingstore/billing-core/internal/payments"
	"github.com/openbillingstore/billing-core/internal/reconciliation"
	"github.com/openbillingstore/billing-core/internal/subscriptions"
	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/metrics"
	"github.com/openbillingstore/billing-core/pkg/migrate"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	outboxRepo := outbox.NewRepository(conn)
	outboxService := outbox.NewService(outboxRepo, logg)
	ordersRepo := orders.NewRepository(conn)
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repository: subscriptions.NewRepository(conn),
		Outbox:     outboxService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create subscriptions service", err)
		os.Exit(1)
	}
	paymentsRepo := payments.NewRepository(conn)
	paymentService, err := payments.NewService(payments.ServiceParams{
		Repository:    paymentsRepo,
		Orders:        ordersRepo,
		Subscriptions: subscriptionService,
		Users:         catalog.NewRepository(conn),
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

	reconcileJob, err := reconciliation.NewJob(reconciliation.JobParams{
		Logger:     logg,
		Payments:   paymentsRepo,
		Syncer:     paymentService,
		StaleAfter: cfg.Reconciliation.StaleAfter,
		BatchSize:  cfg.Reconciliation.BatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to create reconciliation job", err)
		os.Exit(1)
	}
	orderTTLJob, err := cron.NewOrderTTLJob(cron.OrderTTLJobParams{
		Logger: logg,
		DB:     dbClient,
		Orders: ordersRepo,
		Outbox: outboxService,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order ttl job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, orderTTLJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer),
		Spec:     cfg.Cron.Spec,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"providers":   gatewayRegistry.Providers(),
	})

	probe := &http.Server{
		Addr: ":" + cfg.App.Port,
		Handler: routes.NewProbeRouter(cfg, logg, map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := probe.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "probe server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = probe.Shutdown(shutdownCtx)
	}()

	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "cron worker shutting down gracefully")
}
