package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ticketblitz/ticketblitz-backend/api/routes"
	"github.com/ticketblitz/ticketblitz-backend/internal/events"
	"github.com/ticketblitz/ticketblitz-backend/internal/ledger"
	"github.com/ticketblitz/ticketblitz-backend/internal/purchase"
	"github.com/ticketblitz/ticketblitz-backend/internal/resync"
	"github.com/ticketblitz/ticketblitz-backend/internal/stream"
	"github.com/ticketblitz/ticketblitz-backend/pkg/config"
	"github.com/ticketblitz/ticketblitz-backend/pkg/db"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/metrics"
	"github.com/ticketblitz/ticketblitz-backend/pkg/migrate"
	"github.com/ticketblitz/ticketblitz-backend/pkg/outbox"
	"github.com/ticketblitz/ticketblitz-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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

	streamMetrics := metrics.NewStreamMetrics(prometheus.DefaultRegisterer)
	purchaseMetrics := metrics.NewPurchaseMetrics(prometheus.DefaultRegisterer)

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	purchaseRepo := purchase.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	emitter := outbox.NewService(outboxRepo, logg)

	ledgerService, err := ledger.NewService(ledgerRepo, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	eventService, err := events.NewService(dbClient, events.NewRepository(dbClient.DB()), emitter, ledgerService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create event service", err)
		os.Exit(1)
	}

	purchaseService, err := purchase.NewService(dbClient, purchaseRepo, ledgerRepo, emitter, cfg.Purchase, logg, purchaseMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
	}

	resyncService, err := resync.NewService(dbClient, ledgerRepo, purchaseRepo, emitter, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create resync service", err)
		os.Exit(1)
	}

	hub, err := stream.NewHub(ledgerService, streamMetrics, cfg.Stream.SubscriberBuffer)
	if err != nil {
		logg.Error(context.Background(), "failed to create stream hub", err)
		os.Exit(1)
	}

	publisher, err := stream.NewPublisher(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock publisher", err)
		os.Exit(1)
	}

	dispatcher, err := outbox.NewDispatcher(outbox.DispatcherParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Sink:       publisher,
		Metrics:    streamMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create delta dispatcher", err)
		os.Exit(1)
	}

	relay, err := stream.NewRelay(redisClient, hub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock relay", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, eventService, ledgerService, purchaseService, resyncService, hub),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return dispatcher.Run(groupCtx)
	})
	group.Go(func() error {
		return relay.Run(groupCtx)
	})
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
