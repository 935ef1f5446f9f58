package api

import (
	"net/http"

	"github.com/Rrens/flight-support/internal/api/handler"
	customMiddleware "github.com/Rrens/flight-support/internal/api/middleware"
	"github.com/Rrens/flight-support/internal/config"
	"github.com/Rrens/flight-support/internal/domain"
	"github.com/Rrens/flight-support/internal/security"
	"github.com/Rrens/flight-support/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps are the collaborators the router wires into handlers.
// Limiter and Cache are optional.
type Deps struct {
	Conversations *service.ConversationService
	Limiter       customMiddleware.Limiter
	Cache         handler.CacheFlusher
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	conversationHandler := handler.NewConversationHandler(deps.Conversations)
	requireService := customMiddleware.RequireRole(domain.RoleService)
	requireAdmin := customMiddleware.RequireRole(domain.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Conversations))

		r.Group(func(r chi.Router) {
			if cfg.Auth.Enabled {
				jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
				r.Use(customMiddleware.NewAuthMiddleware(jwtManager).Authenticate)
			}
			if cfg.RateLimit.Enabled && deps.Limiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.Limiter).Limit)
			}

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", conversationHandler.Create)

				r.Route("/{uuid}", func(r chi.Router) {
					r.Get("/", conversationHandler.Get)
					r.Get("/content", conversationHandler.Content)
					r.Get("/messages", conversationHandler.RecentMessages)
					r.Post("/messages", conversationHandler.Append)
					r.Post("/sync", conversationHandler.Sync)
					r.Put("/close", conversationHandler.Close)
					r.With(requireService).Put("/transfer", conversationHandler.Transfer)
					r.With(requireAdmin).Delete("/", conversationHandler.Delete)
				})
			})

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/conversations", conversationHandler.ListByUser)
				r.Get("/contents", conversationHandler.ListContentsByUser)
				r.Get("/active", conversationHandler.Active)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireService)
				r.Get("/service/{serviceUserID}/conversations", conversationHandler.ListByService)
				r.Get("/transferred", conversationHandler.ListTransferred)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/conversations", conversationHandler.ListAll)
				if deps.Cache != nil {
					r.Post("/cache/flush", handler.FlushCache(deps.Cache))
				}
			})
		})
	})

	return r
}
