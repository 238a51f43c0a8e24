package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"velowind/internal/api"
	"velowind/internal/cache"
	"velowind/internal/config"
	"velowind/internal/database"
	"velowind/internal/metrics"
	"velowind/internal/server"
	"velowind/internal/wind"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable, requests will bypass the cache", "addr", cfg.Redis.Addr, "error", err)
	}

	var archive server.WarningLister
	if cfg.Database.DSN != "" {
		db, err := database.NewDB(cfg.Database.DSN)
		if err != nil {
			logger.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		archive = db
	}

	client := api.NewWindyClient(cfg.API.Key,
		api.WithBaseURL(cfg.API.BaseURL),
		api.WithModel(cfg.API.Model),
		api.WithTimeout(cfg.Timeout()),
		api.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
	)

	svc := wind.NewService(client,
		cache.NewRedisStore(redisClient, ""),
		metrics.NewPrometheusSink(prometheus.DefaultRegisterer, logger),
		wind.OptionsFromConfig(cfg),
		logger,
	)

	httpServer := server.NewServer(svc, archive, cfg.Cols, prometheus.DefaultGatherer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

func configPath() string {
	if p := os.Getenv("VELOWIND_CONFIG"); p != "" {
		return p
	}
	return "./config.yaml"
}
