package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"openbid-auction-engine/internal/adapters/broadcaster"
	"openbid-auction-engine/internal/adapters/db"
	"openbid-auction-engine/internal/adapters/notify"
	"openbid-auction-engine/internal/adapters/redis"
	"openbid-auction-engine/internal/adapters/scheduler"
	"openbid-auction-engine/internal/adapters/ws"
	"openbid-auction-engine/internal/app"
	"openbid-auction-engine/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting OpenBid auction engine...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	repoFactory := db.NewRepositoryFactory(dbConn)
	auctionRepo := repoFactory.GetAuctionRepository()
	bidRepo := repoFactory.GetBidRepository()
	bidderDirectory := repoFactory.GetBidderDirectory()
	notificationRepo := repoFactory.GetNotificationRepository()

	redisClient, err := redis.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	eventBroadcaster := broadcaster.NewRedisBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	dispatcher := notify.NewDispatcher(notify.DispatcherParams{
		Repo:   notificationRepo,
		Sender: notify.NewLogSender(log.Logger),
		Logger: log.Logger,
	})

	locks := app.NewAuctionLocks()

	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: auctionRepo,
		BidRepo:     bidRepo,
		Broadcaster: eventBroadcaster,
		Notifier:    dispatcher,
		Locks:       locks,
		Logger:      log.Logger,
	})
	bidService := app.NewBidService(app.BidServiceParams{
		BidRepo:     bidRepo,
		AuctionRepo: auctionRepo,
		Bidders:     bidderDirectory,
		Broadcaster: eventBroadcaster,
		Notifier:    dispatcher,
		Locks:       locks,
		Logger:      log.Logger,
	})

	log.Info().Msg("Business services initialized")

	closingScheduler := scheduler.NewClosingScheduler(scheduler.ClosingSchedulerParams{
		Store:        scheduler.NewRedisScheduleStore(redisClient),
		CloseService: auctionService,
		Activator:    auctionService,
		CloseRetries: cfg.Scheduler.CloseRetries,
		RetryBackoff: cfg.Scheduler.RetryBackoff,
		Logger:       log.Logger,
	})
	auctionService.SetScheduler(closingScheduler)

	// Re-arm close timers for auctions that were active when the
	// process last stopped; past-due ones resolve immediately.
	if err := closingScheduler.RecoverActive(ctx, auctionService); err != nil {
		log.Error().Err(err).Msg("Scheduler recovery scan failed")
	}
	log.Info().Msg("Closing scheduler started")

	server := ws.NewServer(ws.ServerParams{
		Config:         cfg,
		AuctionService: auctionService,
		BidService:     bidService,
		Broadcaster:    eventBroadcaster,
		Logger:         log.Logger,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start server")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	closingScheduler.Stop()
	log.Info().Msg("Closing scheduler stopped")

	dispatcher.Stop()
	log.Info().Msg("Notification dispatcher stopped")

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping server")
	}

	if err := eventBroadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing broadcaster")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
