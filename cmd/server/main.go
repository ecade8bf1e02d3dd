package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/appstruct/internal/api"
	"github.com/Rrens/appstruct/internal/config"
	"github.com/Rrens/appstruct/internal/logging"
	"github.com/Rrens/appstruct/internal/repository/mongodb"
	"github.com/Rrens/appstruct/internal/repository/redis"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("llm_provider", cfg.LLM.DefaultProvider).
		Msg("Starting AppStruct API server")

	// Initialize database
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	db, err := mongodb.NewDB(connectCtx, cfg.Database)
	if err != nil {
		cancelConnect()
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := mongodb.EnsureIndexes(connectCtx, db.Database); err != nil {
		cancelConnect()
		log.Fatal().Err(err).Msg("Failed to ensure indexes")
	}
	cancelConnect()
	defer db.Close(context.Background())

	deps := api.Deps{
		DB:         db,
		Users:      mongodb.NewUserRepository(db.Database),
		Blueprints: mongodb.NewBlueprintRepository(db.Database),
	}

	// Initialize Redis
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(context.Background(), cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		deps.Cache = redisClient
		deps.BlueprintCache = redis.NewBlueprintCache(redisClient)
		deps.Limiter = redis.NewRateLimiter(redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
	} else {
		log.Info().Msg("Redis disabled, using in-process rate limiter and no listing cache")
	}

	// Initialize router
	router, err := api.NewRouter(cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	// WriteTimeout stays at the configured value (0 by default) so streams
	// are bounded by server.stream_timeout instead. llm.request_timeout only
	// covers the wait for a provider's response headers.
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
