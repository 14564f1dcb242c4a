package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/delivery/cron"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/delivery/httpapi"
	httpclient "github.com/zenbase-ai/tech-for-iran-sub001/internal/infrastructure/http"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/infrastructure/unipile"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/logger"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/ratelimit"
	sqliterepo "github.com/zenbase-ai/tech-for-iran-sub001/internal/repository/sqlite"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/usecase"
)

func main() {
	// Load configuration from YAML file
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() {
		if err := logger.Close(); err != nil {
			log.Printf("Failed to close log files: %v", err)
		}
	}()

	// Validate required configuration
	if cfg.ProviderAPIKey == "" {
		logger.Error().Fatal("provider.api_key is required")
	}

	// Initialize HTTP client and provider API client
	httpClient := httpclient.NewClient(cfg)
	provider := unipile.NewClient(cfg, httpClient)

	// Initialize persistent repositories
	db, err := sqliterepo.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error().Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	accountRepo := sqliterepo.NewAccountRepository(db)
	podRepo := sqliterepo.NewPodRepository(db)
	postRepo := sqliterepo.NewPostRepository(db)
	engagementRepo := sqliterepo.NewEngagementRepository(db)
	stepRepo := sqliterepo.NewStepRepository(db)
	statRepo := sqliterepo.NewStatRepository(db)

	// Rate-limit counters: Redis when configured, otherwise in-process
	store, cleanup := newCounterStore(cfg)
	defer cleanup()

	actionLimiter := ratelimit.New(store, 24*time.Hour)
	submitLimiter := ratelimit.New(store, cfg.SubmissionWindow)

	// Initialize use cases
	executor := usecase.NewExecutor(cfg, postRepo, stepRepo, accountRepo, engagementRepo, provider, actionLimiter)
	planner := usecase.NewPlanner(cfg, accountRepo, podRepo)
	registry := usecase.NewRegistry(cfg, accountRepo, podRepo, stepRepo, engagementRepo, executor)
	submissions := usecase.NewSubmissionService(cfg, podRepo, postRepo, accountRepo, provider, planner, executor, submitLimiter)
	stats := usecase.NewStatsService(cfg, postRepo, statRepo, stepRepo, engagementRepo, accountRepo, provider)

	if err := registry.Bootstrap(); err != nil {
		logger.Error().Fatalf("Failed to bootstrap pods: %v", err)
	}

	// Initialize and start cron scheduler
	scheduler := cron.NewScheduler(cfg, executor, stats)
	if err := scheduler.Start(); err != nil {
		logger.Error().Fatalf("Failed to start scheduler: %v", err)
	}

	// Start HTTP API server
	apiServer := httpapi.NewServer(cfg, submissions, registry, stats, accountRepo)
	if err := apiServer.Start(); err != nil {
		logger.Error().Fatalf("Failed to start HTTP API server: %v", err)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info().Println("Application started. Press Ctrl+C to stop.")
	<-sigChan

	// Graceful shutdown
	logger.Info().Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	scheduler.Stop()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Printf("HTTP API shutdown error: %v", err)
	}
	logger.Info().Println("Application stopped.")
}

// newCounterStore picks the rate-limit backend. With Redis every process
// shares the quota counters; without it the counters are per-process, which
// only matters when running more than one instance.
func newCounterStore(cfg *config.Config) (ratelimit.CounterStore, func()) {
	if cfg.RedisAddr == "" {
		store := ratelimit.NewMemoryStore()
		ctx, cancel := context.WithCancel(context.Background())
		store.StartCleanup(ctx, time.Hour)
		return store, cancel
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info().Printf("Using Redis rate-limit counters at %s", cfg.RedisAddr)
	return ratelimit.NewRedisStore(client, "pods"), func() { _ = client.Close() }
}
