package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-interface/backend/n8n"
	"ai-interface/backend/pkg/cache"
	"ai-interface/backend/pkg/config"
	"ai-interface/backend/pkg/health"
	"ai-interface/backend/pkg/logger"
	"ai-interface/backend/pkg/router"
	relayapi "ai-interface/backend/relay/api"
	"ai-interface/backend/relay/repository"
	"ai-interface/backend/relay/service"
	"ai-interface/backend/shared/observability"
)

func main() {
	cfg := config.New()

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		JSON:   cfg.Logging.Format == "json",
		Output: os.Stderr,
	})
	logger.SetGlobal(log)

	if shutdownTracing, err := observability.SetupTracing("ai-interface-relay"); err != nil {
		log.Warn("tracing disabled", "error", err.Error())
	} else {
		defer shutdownTracing()
	}

	var metrics *observability.Metrics
	if _, err := observability.SetupPrometheusMetrics(":2112"); err != nil {
		log.Warn("metrics disabled", "error", err.Error())
	} else if metrics, err = observability.NewMetrics(); err != nil {
		log.Warn("metrics disabled", "error", err.Error())
		metrics = nil
	}

	// The store is a tagged variant: postgres-backed when configured,
	// no-op otherwise. Handlers never see the difference.
	var store repository.Store = repository.NewNoopStore()
	checker := health.NewChecker(log, 30*time.Second)

	if cfg.DatabaseEnabled() {
		db, err := config.NewDB()
		if err != nil {
			// Run storeless rather than refuse chat turns.
			log.LogError(err, "database unavailable, continuing without persistence")
		} else {
			store = repository.NewGormStore(db)
			checker.RegisterDatabaseCheck(func() error {
				return config.TestConnection(db)
			})
		}
	} else {
		log.Info("database credentials not found, running without database support")
	}

	client := n8n.NewClient(n8n.Options{
		WebhookURL:    cfg.WebhookURL(),
		HealthURL:     cfg.HealthURL(),
		Timeout:       cfg.N8N.Timeout,
		HealthTimeout: cfg.N8N.HealthTimeout,
	})
	checker.RegisterUpstreamCheck("n8n", func() (int, error) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.N8N.HealthTimeout)
		defer cancel()
		return client.Health(ctx)
	})
	checker.Start()

	// Left nil when caching is disabled; a typed *cache.Cache nil in the
	// interface would defeat the service's nil checks.
	var transcriptCache service.TranscriptCache
	if cfg.Cache.Enabled {
		redisCache := cache.New(cfg.Cache.RedisURL, cfg.Cache.TTL)
		transcriptCache = redisCache
		checker.RegisterCheck("cache", func() (health.Status, string, error) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := redisCache.Ping(ctx); err != nil {
				return health.StatusDegraded, "Transcript cache unreachable", err
			}
			return health.StatusUp, "Transcript cache is reachable", nil
		})
	}

	svc := service.NewChatService(store, client, transcriptCache, metrics, log)
	handler := relayapi.NewHandler(svc)

	r := router.New(cfg, log, checker)
	r.AddOpenAPIValidation(cfg.OpenAPISchema)
	r.SetupRoutes(handler)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r.Engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.N8N.Timeout + 10*time.Second,
	}

	go func() {
		log.Info("server running",
			"port", cfg.Server.Port,
			"webhook", cfg.WebhookURL(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "forced shutdown")
	}
}
