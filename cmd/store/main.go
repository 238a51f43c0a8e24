package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"velowind/internal/alerts"
	"velowind/internal/config"
	"velowind/internal/database"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const consumerGroup = "wind_archivers"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Database.DSN == "" {
		logger.Error("database dsn is not configured")
		os.Exit(1)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	db, err := database.NewDB(cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := os.Getenv("ARCHIVER_METRICS_ADDR"); addr != "" {
		go serveMetrics(addr, logger)
	}

	consumer := alerts.NewStreamConsumer(redisClient, cfg.Redis.Stream, consumerGroup, consumerName(), logger)

	logger.Info("archiving warnings from redis stream", "stream", cfg.Redis.Stream, "group", consumerGroup, "consumer", consumerName())
	if err := consumer.Run(ctx, alerts.ArchiveCallback(db)); err != nil {
		logger.Error("warning archiver failed", "error", err)
		os.Exit(1)
	}
	logger.Info("warning archiver stopped")
}

// consumerName identifies this archiver in the consumer group. It must
// survive restarts so entries left pending by a crash are retried.
func consumerName() string {
	if name := os.Getenv("ARCHIVER_NAME"); name != "" {
		return name
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "archiver"
	}
	return host
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics listener failed", "addr", addr, "error", err)
	}
}

func configPath() string {
	if p := os.Getenv("VELOWIND_CONFIG"); p != "" {
		return p
	}
	return "./config.yaml"
}
