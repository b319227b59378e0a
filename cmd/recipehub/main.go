package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"recipehub-search/internal/api"
	"recipehub-search/internal/cache"
	"recipehub-search/internal/config"
	"recipehub-search/internal/handlers"
	"recipehub-search/internal/history"
	"recipehub-search/internal/httpserver"
	"recipehub-search/internal/invalidation"
	"recipehub-search/internal/metrics"
	"recipehub-search/internal/search"
	"recipehub-search/internal/session"
	"recipehub-search/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("recipehub exited with error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("RECIPEHUB_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// ----- Config -----
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// ----- Logger -----
	logger, err := logging.NewLogger(logging.Options{Env: cfg.Log.Env, Level: cfg.Log.Level})
	if err != nil {
		return err
	}
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	logger.Info("loaded config",
		zap.String("port", cfg.Server.Port),
		zap.String("api_base_url", cfg.API.BaseURL),
		zap.String("history_backend", cfg.History.Backend),
		zap.Bool("invalidation_enabled", cfg.Invalidation.Enabled),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
		zap.Int("cache_max_entries", cfg.Cache.MaxEntries),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))
	}

	// ----- Recipe backend client -----
	client, err := api.NewClient(cfg.APIClient(), logger)
	if err != nil {
		return err
	}
	defer client.Close()

	// ----- Shared search cache -----
	memStore := cache.NewMemoryStore(cfg.CacheStore(), nil, logger)
	defer memStore.Close()
	store := cache.NewLoggingStore(memStore)

	if cfg.Invalidation.Enabled {
		sub := invalidation.NewSubscriber(redisClient, cfg.Invalidation.Channel, store, logger)
		go func() {
			if err := sub.Run(ctx); err != nil {
				logger.Error("invalidation subscriber stopped", zap.Error(err))
			}
		}()
	}

	// ----- Sessions -----
	searchCfg := cfg.SearchCoordinator()
	sessions := session.NewManager(cfg.Sessions(), session.Deps{
		SearchConfig: searchCfg,
		ScrollConfig: cfg.ScrollTrigger(),
		Loader:       search.NewLoader(store, client, searchCfg.PageSize, searchCfg.FetchTimeout, logger),
		Suggester:    search.NewSuggester(client, searchCfg, logger),
		History:      history.New(cfg.HistoryStore(), redisClient),
		Mutator:      client,
		Logger:       logger,
	})
	defer sessions.Close()
	go sessions.Run(ctx)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}, handlers.NewSessionHandler(sessions))

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	logger.Info("starting recipehub", zap.String("addr", srv.Addr))

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// ----- Graceful shutdown -----
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
