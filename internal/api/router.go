package api

import (
	"fmt"
	"net/http"

	"github.com/Rrens/appstruct/internal/api/handler"
	customMiddleware "github.com/Rrens/appstruct/internal/api/middleware"
	"github.com/Rrens/appstruct/internal/config"
	"github.com/Rrens/appstruct/internal/domain"
	"github.com/Rrens/appstruct/internal/llm"
	"github.com/Rrens/appstruct/internal/observability"
	"github.com/Rrens/appstruct/internal/ratelimit"
	"github.com/Rrens/appstruct/internal/security"
	"github.com/Rrens/appstruct/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Deps are the storage and integration collaborators of the HTTP surface.
// Optional fields may be left nil.
type Deps struct {
	DB         handler.Pinger
	Users      domain.UserRepository
	Blueprints domain.BlueprintRepository

	// optional
	Cache          handler.Pinger
	BlueprintCache domain.BlueprintCache
	Limiter        customMiddleware.Limiter
	LLM            *llm.Router
	Events         observability.Sink
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) (http.Handler, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Initialize security components
	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, security.WithIssuer(cfg.Auth.Issuer))
	validator := security.NewValidator()

	events := deps.Events
	if events == nil && cfg.Observability.EventsEnabled {
		events = observability.NewLogSink()
	}

	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
	}

	// Initialize LLM Router with providers
	llmRouter := deps.LLM
	if llmRouter == nil {
		llmRouter = NewLLMRouter(cfg.LLM)
	}
	provider, err := llmRouter.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to bind LLM provider: %w", err)
	}
	log.Info().
		Str("provider", provider.Name()).
		Str("model", provider.DefaultModel()).
		Strs("available", llmRouter.ListProviders()).
		Msg("LLM provider bound")

	// Initialize services
	authService := service.NewAuthService(deps.Users, tokens, validator, events)
	blueprintService := service.NewBlueprintService(provider, deps.Blueprints, deps.BlueprintCache, validator, events)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	blueprintHandler := handler.NewBlueprintHandler(blueprintService, cfg.Server.StreamTimeout)

	// Auth middleware
	authMiddleware := customMiddleware.NewAuthMiddleware(authService)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(limiter)

	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.DB, deps.Cache))

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(rateLimitMiddleware.LimitByIP)
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/llm-providers", handler.ListLLMProviders(llmRouter))

			r.Group(func(r chi.Router) {
				r.Use(rateLimitMiddleware.Limit)
				r.Post("/generate", blueprintHandler.Generate)
				r.Post("/generate-stream", blueprintHandler.GenerateStream)
			})

			r.Route("/blueprints", func(r chi.Router) {
				r.Get("/", blueprintHandler.List)
				r.Post("/", blueprintHandler.Save)
			})
		})
	})

	return r, nil
}
