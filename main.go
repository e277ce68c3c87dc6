package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/watchroom/watchroom-backend/config"
	"github.com/watchroom/watchroom-backend/db"
	"github.com/watchroom/watchroom-backend/handlers"
	"github.com/watchroom/watchroom-backend/internal/events"
	"github.com/watchroom/watchroom-backend/internal/store/postgres"
	"github.com/watchroom/watchroom-backend/logger"
	"github.com/watchroom/watchroom-backend/middleware"
	"github.com/watchroom/watchroom-backend/models"
	"github.com/watchroom/watchroom-backend/router"
	"github.com/watchroom/watchroom-backend/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer func() {
		_ = logger.Close()
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(cfg.Database.URL()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	poolConfig, err := config.ConfigurePostgresPool(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to configure database pool: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(config.ConfigureRedisOptions(&cfg.Redis))
	defer func() {
		_ = redisClient.Close()
	}()
	if err := config.TestRedisConnection(ctx, redisClient); err != nil {
		// Events and rate limiting degrade without Redis; votes keep working.
		log.Warnw("Redis unavailable at startup", "error", err)
	}

	publisher := events.NewRedisPublisher(redisClient, events.Config{
		PublishTimeout:   time.Duration(cfg.EventService.PublishTimeoutSeconds) * time.Second,
		SubscribeTimeout: time.Duration(cfg.EventService.SubscribeTimeoutSeconds) * time.Second,
		EventBufferSize:  cfg.EventService.EventBufferSize,
	})

	voteModel := models.NewVoteModel(
		postgres.NewVoteStore(pool),
		postgres.NewItemStore(pool),
		publisher,
	)

	healthService := services.NewHealthService(pool, redisClient, cfg.Server.Version)

	r := router.SetupRouter(router.Dependencies{
		Config:        cfg,
		VoteHandler:   handlers.NewVoteHandler(voteModel),
		HealthHandler: handlers.NewHealthHandler(healthService),
		BallotLimiter: middleware.BallotRateLimiter(redisClient, cfg.RateLimit.BallotRequestsPerMinute, cfg.RateLimit.Window()),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	if err := publisher.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Event publisher shutdown failed", "error", err)
	}
	log.Info("Server stopped")
}
