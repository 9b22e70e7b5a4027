package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderrecon/internal/bootstrap"
	"github.com/angelmondragon/orderrecon/internal/cron"
	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/config"
	"github.com/angelmondragon/orderrecon/pkg/db"
	"github.com/angelmondragon/orderrecon/pkg/instance"
	"github.com/angelmondragon/orderrecon/pkg/logger"
	"github.com/angelmondragon/orderrecon/pkg/metrics"
	"github.com/angelmondragon/orderrecon/pkg/migrate"
	"github.com/angelmondragon/orderrecon/pkg/redis"
)

const outboxRetentionEvery = 24 * time.Hour

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
		Format:      cfg.App.LogFormat,
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	graph, err := bootstrap.NewReconcile(bootstrap.ReconcileParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Registerer: prometheus.DefaultRegisterer,
		Recorder:   reconcile.NewRedisRunStore(redisClient),
		Component:  "cron-worker",
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire reconciliation", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, graph)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks:    cron.RedisLockFactory(redisClient, cfg.App.Env),
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Tick:     cfg.Reconcile.Tick,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"jobs":        len(registry.Entries()),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, graph *bootstrap.Reconcile) (*cron.Registry, error) {
	registry := cron.NewRegistry()

	frequent, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger: logg,
		Runner: graph.Runner,
		Name:   cron.QuoteRecoveryJobName,
		Window: cfg.Reconcile.FrequentWindow,
	})
	if err != nil {
		return nil, err
	}
	registry.Register(frequent, cfg.Reconcile.FrequentEvery)

	catchup, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger: logg,
		Runner: graph.Runner,
		Name:   cron.CatchupJobName,
		Window: cfg.Reconcile.CatchupWindow,
	})
	if err != nil {
		return nil, err
	}
	registry.Register(catchup, cfg.Reconcile.CatchupEvery)

	invoiceRecovery, err := cron.NewInvoiceRecoveryJob(cron.InvoiceRecoveryJobParams{
		Logger:        logg,
		Orders:        graph.Orders,
		Reconciler:    graph.InvoiceReconciler,
		Notifier:      graph.Notifier,
		PaymentMethod: cfg.Reconcile.PaymentMethod,
		Window:        cfg.Reconcile.InvoiceWindow,
	})
	if err != nil {
		return nil, err
	}
	registry.Register(invoiceRecovery, cfg.Reconcile.InvoiceEvery)

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: graph.OutboxRepo,
	})
	if err != nil {
		return nil, err
	}
	registry.Register(retention, outboxRetentionEvery)

	return registry, nil
}
