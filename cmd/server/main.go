package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/flight-support/internal/api"
	"github.com/Rrens/flight-support/internal/config"
	"github.com/Rrens/flight-support/internal/domain"
	"github.com/Rrens/flight-support/internal/logging"
	"github.com/Rrens/flight-support/internal/repository/memory"
	"github.com/Rrens/flight-support/internal/repository/mongo"
	"github.com/Rrens/flight-support/internal/repository/postgres"
	"github.com/Rrens/flight-support/internal/repository/redis"
	"github.com/Rrens/flight-support/internal/repository/sqlstore"
	"github.com/Rrens/flight-support/internal/service"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// stores holds the backends selected by configuration and their cleanup
type stores struct {
	index    domain.IndexStore
	content  domain.ContentStore
	identity domain.IdentityResolver
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("index_driver", cfg.Index.Driver).
		Msg("Starting flight support API server")

	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer st.close()

	opts := []service.Option{
		service.WithRecentDefault(cfg.Conversation.RecentMessages),
		service.WithSingleActive(cfg.Conversation.EnforceSingleActive),
		service.WithLocker(service.NewKeyedMutex(cfg.Conversation.LockWait)),
	}
	deps := api.Deps{}

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		cache := redis.NewRecentMessagesCache(redisClient, cfg.Conversation.RecentCacheTTL)
		opts = append(opts, service.WithRecentCache(cache))
		deps.Cache = cache

		if cfg.Conversation.LockDriver == config.LockDriverRedis {
			opts = append(opts, service.WithLocker(
				redis.NewLocker(redisClient, cfg.Conversation.LockTTL, cfg.Conversation.LockWait),
			))
		}
		if cfg.RateLimit.Enabled {
			deps.Limiter = redis.NewRateLimiter(redisClient, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		}
	}

	deps.Conversations = service.NewConversationService(st.index, st.content, st.identity, opts...)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// openStores connects the index backend named by index.driver and the
// transcript store. The memory driver keeps both stores in-process and
// seeds a customer, an agent and an admin.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}

	switch cfg.Index.Driver {
	case config.IndexDriverMemory:
		dir := memory.NewDirectory()
		dir.Put(1, "customer", domain.UserTypeCustomer)
		dir.Put(2, "agent", domain.UserTypeService)
		dir.Put(3, "admin", domain.UserTypeAdmin)

		st.index = memory.NewConversationIndexStore()
		st.content = memory.NewTranscriptStore()
		st.identity = dir
		log.Warn().Msg("Using in-memory stores; data is lost on restart")
		return st, nil

	case config.IndexDriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		st.closers = append(st.closers, db.Close)
		st.index = postgres.NewConversationIndexRepository(db)
		st.identity = postgres.NewUserRepository(db)

	case config.IndexDriverMySQL, config.IndexDriverSQLite:
		db, err := sqlstore.Open(ctx, cfg.Index.Driver, cfg.Index.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s index: %w", cfg.Index.Driver, err)
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		st.index = sqlstore.NewConversationIndexRepository(db, cfg.Index.MaxRetries)
		st.identity = sqlstore.NewUserRepository(db)

	default:
		return nil, fmt.Errorf("unknown index driver %q", cfg.Index.Driver)
	}

	mongoClient, err := mongo.NewClient(ctx, cfg.Mongo)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	st.closers = append(st.closers, func() {
		if err := mongoClient.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to disconnect mongo")
		}
	})

	transcripts, err := mongo.NewTranscriptRepository(ctx, mongoClient, cfg.Mongo.Collection)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("failed to prepare transcript collection: %w", err)
	}
	st.content = transcripts

	return st, nil
}
