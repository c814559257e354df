package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/hotelpricesync/config"
	"sjsage522/hotelpricesync/helpers"
	"sjsage522/hotelpricesync/internal/api"
	"sjsage522/hotelpricesync/internal/calendar"
	"sjsage522/hotelpricesync/internal/extractor"
	"sjsage522/hotelpricesync/internal/ledger"
	"sjsage522/hotelpricesync/internal/rangesync"
	"sjsage522/hotelpricesync/logger"
	"sjsage522/hotelpricesync/services/cache"
	"sjsage522/hotelpricesync/services/lock"
	"sjsage522/hotelpricesync/services/publisher"
	"sjsage522/hotelpricesync/services/worker"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("ledger", cfg.LedgerDriver).
		Str("refresh_cron", cfg.RefreshCron).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	fetcher := helpers.NewFetcher(cfg.FetchTimeout, services.Cache, cfg.FetchBlock)
	static := extractor.NewEngine(fetcher.Fetch)
	interactive := calendar.NewRunner(cfg.CalendarWorkerPath, cfg.CalendarWorkerTimeout).
		WithCache(services.Cache, cfg.CalendarCacheTTL)

	syncer := rangesync.NewSynchronizer(static, services.Ledger, rangesync.Options{
		DayDelay:  cfg.SyncDayDelay,
		MaxDays:   cfg.SyncMaxDays,
		LockTTL:   cfg.SyncLockTTL,
		Locker:    services.Locker,
		Publisher: services.Publisher,
	})

	// Create and start the refresh worker
	w := worker.NewWorker(ctx, syncer, services.Ledger, services.Publisher,
		cfg.RefreshCron, cfg.RefreshDays, cfg.RefreshConcurrency)
	if err := w.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule refresh worker")
	}
	defer w.Stop()

	server := api.NewServer(syncer, services.Ledger, static, interactive, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.APIRateLimit,
	}).NewHTTPServer(cfg.HTTPAddr)

	// Start server in a goroutine
	serverDone := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting HTTP server")
		serverDone <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	case err := <-serverDone:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server exited with error")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	cancel()
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Ledger    ledger.Store
	Locker    lock.Locker
	Publisher publisher.Publisher
	redis     *redis.Client
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.Ledger != nil {
		s.Ledger.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize cache service, falling back to process memory
	memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := memcacheService.Ping(); err != nil {
		logger.Warn("Memcache at %s unavailable (%v), using in-memory cache", cfg.MemcacheAddr, err)
		services.Cache = cache.NewMemoryCache()
	} else {
		services.Cache = memcacheService
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	// Initialize ledger
	switch cfg.LedgerDriver {
	case "postgres":
		pg, err := ledger.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		services.Ledger = pg
		logger.Info("Connected to Postgres ledger")
	default:
		services.Ledger = ledger.NewMemory()
		logger.Info("Using in-memory ledger")
	}

	// Initialize redis-backed lock and publisher
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		if cfg.PublishEvents {
			services.Cleanup()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Warn("Redis at %s unavailable (%v), using process-local locks", cfg.RedisAddr, err)
		services.Locker = lock.NewLocalLocker()
		services.Publisher = publisher.NopPublisher{}
		return services, nil
	}
	services.Locker = lock.NewRedisLocker(client, cfg.RedisStream)

	// The redis publisher owns the client once created
	if cfg.PublishEvents {
		services.Publisher = publisher.NewRedisPublisher(client, cfg.RedisStream, cfg.RedisStreamMaxLength)
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	} else {
		services.redis = client
		services.Publisher = publisher.NopPublisher{}
		logger.Info("Connected to Redis at %s (DB: %d), event publishing disabled",
			cfg.RedisAddr, cfg.RedisDB)
	}

	return services, nil
}
