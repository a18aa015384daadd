package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bidfinderz-backend/internal/auctions"
	"github.com/angelmondragon/bidfinderz-backend/internal/broadcast"
	"github.com/angelmondragon/bidfinderz-backend/internal/notifications"
	"github.com/angelmondragon/bidfinderz-backend/internal/scheduler"
	"github.com/angelmondragon/bidfinderz-backend/internal/settlement"
	"github.com/angelmondragon/bidfinderz-backend/pkg/config"
	"github.com/angelmondragon/bidfinderz-backend/pkg/db"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
	"github.com/angelmondragon/bidfinderz-backend/pkg/metrics"
	"github.com/angelmondragon/bidfinderz-backend/pkg/migrate"
	"github.com/angelmondragon/bidfinderz-backend/pkg/outbox"
	"github.com/angelmondragon/bidfinderz-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconciler"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "reconciler"

	logg = logger.New(logger.Options{
		ServiceName: "reconciler",
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

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	rooms, err := broadcast.NewPublisher(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create room publisher", err)
		os.Exit(1)
	}

	auctionRepo := auctions.NewRepository(dbClient.DB())
	settlementRepo := settlement.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())

	notificationSvc, err := notifications.NewService(notificationRepo, logg, cfg.FeatureFlags.Notifications)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	settlementSvc, err := settlement.NewService(settlement.ServiceParams{
		AuctionRepo: auctionRepo,
		Repo:        settlementRepo,
		Tx:          dbClient,
		Outbox:      outboxSvc,
		Rooms:       rooms,
		Notifier:    notificationSvc,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	auctionSvc, err := auctions.NewService(auctionRepo, dbClient, outboxSvc, rooms)
	if err != nil {
		logg.Error(context.Background(), "failed to create auction service", err)
		os.Exit(1)
	}

	activationJob, err := scheduler.NewActivationJob(scheduler.ActivationJobParams{
		Logger:    logg,
		Finder:    auctionRepo,
		Activator: auctionSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create activation job", err)
		os.Exit(1)
	}

	expiryJob, err := scheduler.NewExpiryJob(scheduler.ExpiryJobParams{
		Logger:  logg,
		Finder:  auctionRepo,
		Settler: settlementSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}

	retentionJob, err := scheduler.NewRetentionJob(scheduler.RetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retention job", err)
		os.Exit(1)
	}

	lock, err := scheduler.NewRedisLock(redisClient, redisClient.LockKey(lockScope(cfg.App.Env)), cfg.Engine.SweepLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler lock", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewSchedulerJobMetrics(prometheus.DefaultRegisterer)
	service, err := scheduler.NewService(scheduler.ServiceParams{
		Logger:   logg,
		Registry: scheduler.NewRegistry(activationJob, expiryJob, retentionJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Engine.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting reconciler")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconciler stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconciler shutting down gracefully")
}

func lockScope(env string) string {
	if env == "" {
		env = "local"
	}
	return "reconciler:" + env
}
