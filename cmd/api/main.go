package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bidfinderz-backend/api"
	"github.com/angelmondragon/bidfinderz-backend/api/routes"
	"github.com/angelmondragon/bidfinderz-backend/internal/auctions"
	"github.com/angelmondragon/bidfinderz-backend/internal/bidding"
	"github.com/angelmondragon/bidfinderz-backend/internal/broadcast"
	"github.com/angelmondragon/bidfinderz-backend/internal/countdown"
	"github.com/angelmondragon/bidfinderz-backend/internal/notifications"
	"github.com/angelmondragon/bidfinderz-backend/internal/realtime"
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
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

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

	registry := prometheus.NewRegistry()
	bidMetrics := metrics.NewBidMetrics(registry)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	rooms, err := broadcast.NewPublisher(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create room publisher", err)
		os.Exit(1)
	}

	auctionRepo := auctions.NewRepository(dbClient.DB())
	bidRepo := bidding.NewRepository(dbClient.DB())
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

	supervisor, err := countdown.NewSupervisor(countdown.SupervisorParams{
		Auctions:        auctionRepo,
		Settler:         settlementSvc,
		Rooms:           rooms,
		Notifier:        notificationSvc,
		Logger:          logg,
		TickInterval:    cfg.Engine.TickInterval,
		EndingSoonFrom:  cfg.Engine.EndingSoonFrom,
		EndingSoonUntil: cfg.Engine.EndingSoonUntil,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create countdown supervisor", err)
		os.Exit(1)
	}

	biddingSvc, err := bidding.NewService(bidding.ServiceParams{
		AuctionRepo: auctionRepo,
		BidRepo:     bidRepo,
		Tx:          dbClient,
		Outbox:      outboxSvc,
		Rooms:       rooms,
		Extender:    supervisor,
		Notifier:    notificationSvc,
		Metrics:     bidMetrics,
		BidWindow:   cfg.Engine.BidWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bidding service", err)
		os.Exit(1)
	}

	auctionSvc, err := auctions.NewService(auctionRepo, dbClient, outboxSvc, rooms)
	if err != nil {
		logg.Error(context.Background(), "failed to create auction service", err)
		os.Exit(1)
	}

	hub, err := realtime.NewHub(supervisor, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create websocket hub", err)
		os.Exit(1)
	}

	wsHandler, err := realtime.NewHandler(realtime.HandlerParams{
		JWT:      cfg.JWT,
		Hub:      hub,
		Auctions: auctionSvc,
		Bids:     biddingSvc,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create websocket handler", err)
		os.Exit(1)
	}

	relay, err := realtime.NewRelay(redisClient, hub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create room relay", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Auctions:      auctionSvc,
		Bids:          biddingSvc,
		Settlement:    settlementSvc,
		Notifications: notificationSvc,
		Realtime:      wsHandler,
		Registry:      registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 3)
	go func() { errCh <- supervisor.Run(ctx) }()
	go func() { errCh <- relay.Run(ctx) }()
	go func() { errCh <- api.Serve(ctx, logg, addr, router) }()

	// First hard failure wins; a cancelled context is a clean shutdown.
	for i := 0; i < 3; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "api process stopped unexpectedly", err)
			stop()
			os.Exit(1)
		}
		stop()
	}

	logg.Info(ctx, "api shutting down gracefully")
}
