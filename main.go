package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"greendrake/negotiation/internal/api"
	"greendrake/negotiation/internal/api/middleware"
	"greendrake/negotiation/internal/cache"
	"greendrake/negotiation/internal/config"
	"greendrake/negotiation/internal/db"
	"greendrake/negotiation/internal/events"
	"greendrake/negotiation/internal/logging"
	"greendrake/negotiation/internal/messaging"
	"greendrake/negotiation/internal/services"
	"greendrake/negotiation/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			logger.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create indexes")
	}
	cancelIndex()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			logger.Error().Err(err).Msg("Error disconnecting from Redis")
		}
	}()

	// Initialize Task Client
	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	// Message delivery: the sender that actually reaches phones, and the one
	// the gateway hands messages to.
	deliverySender := buildDeliverySender(cfg, redisClient, logger)
	var gatewaySender messaging.Sender = deliverySender
	if cfg.MessagingViaQueue {
		logger.Info().Msg("MESSAGING_VIA_QUEUE enabled: messages are delivered by the background worker")
		gatewaySender = tasks.NewQueueSender(taskClient, logger)
	}

	// Event bus
	var bus events.Bus
	switch cfg.EventBus {
	case "memory":
		memoryBus := events.NewMemoryBus()
		defer memoryBus.Close()
		bus = memoryBus
	default:
		bus = events.NewRedisBus(redisClient)
	}

	// Side effect runner
	var runner services.SideEffectRunner
	if cfg.SideEffectsAsync {
		runner = services.NewAsyncRunner(cfg.SideEffectTimeout, logger)
	} else {
		runner = services.InlineRunner{Logger: logger}
	}

	// Initialize Services
	directoryService := services.NewDirectoryService(mongoDb)
	notificationService := services.NewNotificationService(mongoDb, logger)
	negotiationService := services.NewNegotiationService(services.NegotiationDeps{
		Store:            services.NewMongoNegotiationStore(mongoDb),
		Carts:            services.NewCartService(mongoDb, logger),
		Notifications:    notificationService,
		Messages:         messaging.NewGateway(directoryService, gatewaySender, cfg.PhoneCountryCode, logger),
		Events:           events.NewBroadcaster(bus),
		Directory:        directoryService,
		Resolver:         services.NewCoinResolver(),
		Runner:           runner,
		Logger:           logger,
		AcceptedOfferTTL: cfg.AcceptedOfferTTL,
		ProductBaseURL:   cfg.ProductBaseURL,
	})

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(redisClient, shutdownChan, logger),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("port", cfg.ServiceApiPort).Msg("Service API listening")
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Service API ListenAndServe error")
		}
		logger.Info().Msg("Service API server stopped")
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var rateLimiter *middleware.RateLimiterMiddleware
	var backgroundTaskSrv *asynq.Server

	logger.Info().Str("mode", cfg.RunMode).Msg("Starting application")

	apiMode := func() {
		rateLimiter = middleware.NewRateLimiterMiddleware(cfg, logger)
		mainApiRouter := api.SetupRouter(cfg, api.RouterDeps{
			Negotiations:  negotiationService,
			Notifications: notificationService,
			Bus:           bus,
			RateLimiter:   rateLimiter,
		}, logger)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info().Str("port", cfg.ApiPort).Msg("Main API listening")
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal().Err(err).Msg("Main API ListenAndServe error")
			}
			logger.Info().Msg("Main API server stopped")
		}()
	}

	bgMode := func() {
		taskProcessor := tasks.NewTaskProcessor(deliverySender, logger)
		srv, mux := tasks.NewServer(redisClient, taskProcessor, logger)
		if err := srv.Start(mux); err != nil {
			logger.Fatal().Err(err).Msg("Background task server error")
		}
		backgroundTaskSrv = srv
		logger.Info().Msg("Background task server started")
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		logger.Fatal().Str("mode", cfg.RunMode).Msg("Invalid run mode")
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")
	case <-shutdownChan:
		logger.Info().Msg("Shutdown requested via Service API")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("Service API server shutdown error")
	}

	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("Main API server shutdown error")
		}
		rateLimiter.Close()
	}

	// Side effects of already answered requests still need the collaborators.
	runner.Wait()

	if backgroundTaskSrv != nil {
		backgroundTaskSrv.Shutdown()
	}

	wg.Wait()
	logger.Info().Msg("Server gracefully stopped")
}

// buildDeliverySender picks the primary sender and adds the file log when
// LOG_MESSAGES is set.
func buildDeliverySender(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) messaging.Sender {
	var primary messaging.Sender
	switch {
	case cfg.MockServices:
		logger.Info().Msg("MOCK_SERVICES enabled: using Redis message sender")
		primary = messaging.NewRedisSender(redisClient)
	case cfg.MessagingAPIURL != "":
		primary = messaging.NewHTTPSender(cfg.MessagingAPIURL, cfg.MessagingAPIKey, cfg.MessagingTimeout, logger)
	default:
		logger.Warn().Msg("MESSAGING_API_URL not set: messages are only logged")
		primary = messaging.NewLoggingSender(logger)
	}

	composite := messaging.NewCompositeSender(primary)
	if cfg.LogMessagesPath != "" {
		fileSender, err := messaging.NewFileSender(cfg.LogMessagesPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.LogMessagesPath).Msg("Failed to initialize file message sender, proceeding without it")
		} else {
			composite.AddSender(fileSender)
		}
	}
	return composite
}
