// Package main is the entry point for the CAD-Sentinel monitoring service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cad-sentinel/internal/alerting"
	"cad-sentinel/internal/api"
	"cad-sentinel/internal/cache"
	"cad-sentinel/internal/config"
	"cad-sentinel/internal/consumer"
	"cad-sentinel/internal/fingerprint"
	"cad-sentinel/internal/monitor"
	"cad-sentinel/internal/roster"
	"cad-sentinel/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"database", cfg.Storage.Database,
		"cache_enabled", cfg.Cache.Enabled,
		"consumer_enabled", cfg.Consumer.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage.
	chClient, err := storage.NewClickHouseClient(cfg.Storage)
	if err != nil {
		slog.Error("failed to connect to ClickHouse", "error", err)
		os.Exit(1)
	}

	slog.Info("running database migrations")
	if err := storage.NewMigrator(chClient).Run(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	store := storage.NewEventStore(chClient)

	// Cache (optional).
	var cacheClient cache.Client
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedisClient(cfg.Cache)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		cacheClient = redisClient
		slog.Info("cache connected", "addr", cfg.Cache.Addr)
	}

	// Notification roster.
	static, err := roster.NewStaticDirectory(cfg.Roster.Admins, cfg.Roster.SecurityTeam)
	if err != nil {
		slog.Error("invalid roster configuration", "error", err)
		os.Exit(1)
	}
	var directory roster.Directory = static
	if cacheClient != nil {
		directory = roster.NewCachedDirectory(static, cacheClient, cfg.Roster.CacheTTL, logger)
	}

	// Alert delivery: the audit channel always runs; a webhook channel is
	// added when configured.
	var dispatcher alerting.Dispatcher = alerting.NewAuditDispatcher(store, logger)
	if cfg.Alerting.WebhookURL != "" {
		webhook := alerting.NewWebhookDispatcher("webhook", cfg.Alerting.WebhookURL, cfg.Alerting.WebhookHeaders)
		dispatcher = alerting.NewFanoutDispatcher(logger, dispatcher, webhook)
	}
	if cfg.Alerting.RateLimit.Enabled {
		dispatcher = alerting.NewRateLimitedDispatcher(dispatcher, cfg.Alerting.RateLimit, logger)
	}

	// Monitoring engine.
	service := monitor.NewService(cfg.Monitor, store, dispatcher, directory, logger)
	if cacheClient != nil {
		service.SetPatternSuppressor(fingerprint.NewCacheSuppressor(cacheClient))
	}

	go service.RunScanLoop(ctx)

	// Kafka ingestion (optional).
	var eventConsumer *consumer.Consumer
	if cfg.Consumer.Enabled {
		eventConsumer, err = consumer.New(cfg.Consumer, service, logger)
		if err != nil {
			slog.Error("invalid consumer configuration", "error", err)
			os.Exit(1)
		}
		eventConsumer.Start(ctx)
	}

	// HTTP API.
	mux := http.NewServeMux()
	api.NewHandler(service, chClient, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting monitoring server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	cancel()

	if eventConsumer != nil {
		if err := eventConsumer.Stop(); err != nil {
			slog.Error("consumer stop error", "error", err)
		}
	}

	if cacheClient != nil {
		if err := cacheClient.Close(); err != nil {
			slog.Error("cache close error", "error", err)
		}
	}

	if err := chClient.Close(); err != nil {
		slog.Error("clickhouse close error", "error", err)
	}

	slog.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
