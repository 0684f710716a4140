// Package main provides the API server entry point for the URL indexer
// service.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/url-indexer/internal/adapter"
	"github.com/url-indexer/internal/api"
	"github.com/url-indexer/internal/config"
	"github.com/url-indexer/internal/job"
	"github.com/url-indexer/internal/logging"
	"github.com/url-indexer/internal/quota"
	"github.com/url-indexer/internal/service"
	"github.com/url-indexer/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Repositories
	appRepo := storage.NewAppRepository(postgres)
	statsRepo := storage.NewBatchStatsRepository(postgres)
	logRepo := storage.NewLogRepository(clickhouse)
	urlCache := storage.NewURLCache(redis)

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := logRepo.EnsureSchema(schemaCtx); err != nil {
		logger.WithError(err).Fatal("Failed to ensure ClickHouse schema")
	}
	cancelSchema()

	// Provider clients
	tokens := adapter.NewJWTTokenSource(&adapter.JWTTokenSourceConfig{
		RequestTimeout: cfg.Indexing.RequestTimeout,
	})
	searchConsole := adapter.NewSearchConsoleClient(&adapter.SearchConsoleClientConfig{
		RequestsPerSec: cfg.Indexing.ProviderRPS,
		RequestTimeout: cfg.Indexing.RequestTimeout,
	})
	indexing := adapter.NewIndexingClient(&adapter.IndexingClientConfig{
		RequestsPerSec: cfg.Indexing.ProviderRPS,
		RequestTimeout: cfg.Indexing.RequestTimeout,
		RPMRetries:     cfg.Quota.RPMRetries,
		RPMWaitWindow:  cfg.Quota.RPMWaitWindow,
	})

	budget, err := quota.NewPublishBudget(&quota.PublishBudgetConfig{
		Redis:      redis.Client(),
		DailyLimit: cfg.Quota.DailyPublishLimit,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create publish budget")
	}

	// Orchestrator and job registry
	indexService := service.NewIndexService(
		tokens,
		searchConsole,
		searchConsole,
		searchConsole,
		indexing,
		urlCache,
		statsRepo,
		budget,
		&service.IndexServiceConfig{
			BatchSize: cfg.Indexing.BatchSize,
			CacheTTL:  cfg.Indexing.CacheTTL,
		},
	)
	registry := job.NewRegistry(indexService, logRepo, &job.Config{
		MaxRetries:    cfg.Indexing.MaxRetries,
		RetryDelay:    cfg.Indexing.RetryDelay,
		BackoffFactor: cfg.Indexing.BackoffFactor,
	})

	// HTTP server
	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			RateLimitRPS:    cfg.Server.RequestsPerSec,
			FlushInterval:   cfg.Indexing.FlushInterval,
		},
		registry,
		appRepo,
		statsRepo,
		logRepo,
		urlCache,
	)

	// Start the server and wait for a shutdown signal
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Fatal("Server failed")
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}
