package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/ai"
	"github.com/meatwise/search-service/internal/api"
	"github.com/meatwise/search-service/internal/cache"
	"github.com/meatwise/search-service/internal/config"
	"github.com/meatwise/search-service/internal/intent"
	"github.com/meatwise/search-service/internal/kafka"
	"github.com/meatwise/search-service/internal/models"
	"github.com/meatwise/search-service/internal/observability"
	"github.com/meatwise/search-service/internal/orchestrator"
	"github.com/meatwise/search-service/internal/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting search service",
		zap.String("service", cfg.Observability.ServiceName),
	)

	// Initialize tracing
	tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize cache. Redis when addresses are configured, otherwise
	// the in-process store; both hold parsed intents and batch groups.
	var store cache.Store
	var redisCache *cache.Redis
	if len(cfg.Redis.Addresses) > 0 {
		redisCache, err = cache.NewRedis(cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("initializing redis: %w", err)
		}
		store = redisCache
		logger.Info("redis cache initialized")
	} else {
		store = cache.NewMemory()
		logger.Info("in-process cache initialized")
	}
	defer store.Close()

	// Initialize product catalog
	products, err := postgres.NewProductStore(cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("initializing postgres: %w", err)
	}
	defer products.Close()
	logger.Info("postgres product store initialized")

	// Initialize intent parsing. The AI client is optional; a missing
	// credential leaves the parser on the rule engine.
	var completer intent.Completer
	if client := ai.NewClient(cfg.AI, logger); client != nil {
		completer = client
	}
	parser := intent.NewParser(completer, store, cfg.Search.QueryCacheTTL, logger)

	// Initialize slow search detector
	slowDetector := observability.NewSlowSearchDetector(
		cfg.Search.SlowSearch.WarningThreshold,
		cfg.Search.SlowSearch.CriticalThreshold,
		logger,
	)

	caps := models.DefaultCapabilities()

	// Initialize search orchestrator and batch optimizer
	orch := orchestrator.New(products, parser, caps, slowDetector, cfg.Search, logger)

	optimizer := orchestrator.NewBatchOptimizer(products, caps, store, cfg.Search, logger)
	defer optimizer.Stop()

	// Initialize catalog-change consumer for cache invalidation
	var consumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer = kafka.NewConsumer(cfg.Kafka, optimizer.HandleChange, logger)
		if err := consumer.Start(ctx); err != nil {
			logger.Warn("kafka consumer start failed, cache invalidation will be unavailable", zap.Error(err))
			consumer = nil
		} else {
			defer consumer.Stop()
			logger.Info("kafka consumer started")
		}
	} else {
		logger.Info("no kafka brokers configured, cached groups expire on TTL only")
	}

	// Initialize HTTP server
	handler := api.NewHandler(orch, optimizer, parser, logger)

	healthHandler := api.NewHealthHandler(logger)
	healthHandler.Register("postgres", products)
	if redisCache != nil {
		healthHandler.Register("redis", redisCache)
	}
	if consumer != nil {
		healthHandler.Register("kafka", consumer)
	}

	router := api.NewRouter(handler, healthHandler, cfg.Server.MaxConcurrent, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	// Graceful shutdown
	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	// Cancel background operations
	cancel()

	// Shutdown tracing
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}
