package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mirador/internal/auth"
	"mirador/internal/server"
	"mirador/internal/storage"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := loadConfig()

	// Telemetry store (DuckDB)
	store, err := storage.New(cfg.dbPath, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}
	logger.Info("connected to telemetry store", zap.String("path", cfg.dbPath))

	// Auth store (SQLite)
	authProvider, err := auth.New(cfg.authDBPath, cfg.pepper, logger)
	if err != nil {
		logger.Fatal("failed to initialize auth", zap.Error(err))
	}
	if err := authProvider.Bootstrap(context.Background(), cfg.bootstrapToken); err != nil {
		logger.Fatal("failed to bootstrap auth", zap.Error(err))
	}

	// Retention worker
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	go store.StartCleanupWorker(cleanupCtx, cfg.retention)

	srv := server.New(server.Config{
		Port:                cfg.port,
		RetentionCfg:        cfg.retention,
		MaxConcurrentIngest: cfg.maxConcurrentIngest,
		MaxConcurrentQuery:  cfg.maxConcurrentQuery,
	}, store, authProvider, logger)

	go func() {
		logger.Info("server listening", zap.Int("port", cfg.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancelCleanup()

	// Give outstanding requests 5 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	if err := store.Close(); err != nil {
		logger.Warn("error closing storage", zap.Error(err))
	}
	if err := authProvider.Close(); err != nil {
		logger.Warn("error closing auth store", zap.Error(err))
	}

	logger.Info("server exited")
}

type config struct {
	port                int
	dbPath              string
	authDBPath          string
	pepper              string
	bootstrapToken      string
	retention           storage.CleanupConfig
	maxConcurrentIngest int
	maxConcurrentQuery  int
}

func loadConfig() config {
	return config{
		port:           envInt("MIRADOR_PORT", 4318), // standard OTLP/HTTP port
		dbPath:         envString("MIRADOR_DB_PATH", "mirador.duckdb"),
		authDBPath:     envString("MIRADOR_AUTH_DB_PATH", "mirador-auth.db"),
		pepper:         envString("MIRADOR_PEPPER", ""),
		bootstrapToken: envString("MIRADOR_BOOTSTRAP_TOKEN", ""),
		retention: storage.CleanupConfig{
			RetentionHours:      envInt("MIRADOR_RETENTION_HOURS", 0),
			CleanupIntervalMins: envInt("MIRADOR_CLEANUP_INTERVAL_MINS", 60),
		},
		maxConcurrentIngest: envInt("MIRADOR_MAX_CONCURRENT_INGEST", 32),
		maxConcurrentQuery:  envInt("MIRADOR_MAX_CONCURRENT_QUERY", 16),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
