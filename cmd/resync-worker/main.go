package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ticketblitz/ticketblitz-backend/internal/cron"
	"github.com/ticketblitz/ticketblitz-backend/internal/ledger"
	"github.com/ticketblitz/ticketblitz-backend/internal/purchase"
	"github.com/ticketblitz/ticketblitz-backend/internal/resync"
	"github.com/ticketblitz/ticketblitz-backend/pkg/config"
	"github.com/ticketblitz/ticketblitz-backend/pkg/db"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/metrics"
	"github.com/ticketblitz/ticketblitz-backend/pkg/migrate"
	"github.com/ticketblitz/ticketblitz-backend/pkg/outbox"
	"github.com/ticketblitz/ticketblitz-backend/pkg/redis"
)

const lockName = "stock-resync"

func main() {
	logg := logger.New(logger.Options{ServiceName: "resync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "resync-worker"

	logg = logger.New(logger.Options{
		ServiceName: "resync-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
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

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	purchaseRepo := purchase.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	emitter := outbox.NewService(outboxRepo, logg)

	resyncService, err := resync.NewService(dbClient, ledgerRepo, purchaseRepo, emitter, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create resync service", err)
		os.Exit(1)
	}

	resyncJob, err := resync.NewJob(resyncService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create resync job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewDeltaRetentionJob(cron.DeltaRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create delta retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	registry.Register(resyncJob)
	registry.Register(retentionJob)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Resync.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create resync lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Resync.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting resync worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "resync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "resync worker shutting down gracefully")
}
