package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"velowind/internal/alerts"
	"velowind/internal/api"
	"velowind/internal/cache"
	"velowind/internal/config"
	"velowind/internal/metrics"
	"velowind/internal/models"
	"velowind/internal/wind"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// cachePrefix keeps collector cache keys apart from the API's
const cachePrefix = "collect:"

// passChecker is the slice of wind.Service the collector drives
type passChecker interface {
	CheckMountainPassWindConditions(ctx context.Context, colID string, location models.GeoLocation) (*models.MountainPassReport, error)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if len(cfg.Cols) == 0 {
		logger.Error("no cols configured, nothing to collect")
		os.Exit(1)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	client := api.NewWindyClient(cfg.API.Key,
		api.WithBaseURL(cfg.API.BaseURL),
		api.WithModel(cfg.API.Model),
		api.WithTimeout(cfg.Timeout()),
		api.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
	)

	svc := wind.NewService(client,
		cache.NewRedisStore(redisClient, cachePrefix),
		metrics.NewPrometheusSink(prometheus.DefaultRegisterer, logger),
		wind.OptionsFromConfig(cfg),
		logger,
	)

	// cmd/store archives what is published here
	publisher := alerts.NewStreamPublisher(redisClient, cfg.Redis.Stream)
	defer svc.RegisterWarningCallback(publisher.Publish)()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("collector started", "cols", len(cfg.Cols), "interval", cfg.RefreshEvery())
	poll(ctx, svc, cfg.Cols, cfg.RefreshEvery(), logger)
	logger.Info("collector stopped")
}

// poll checks every col immediately, then once per interval until ctx is done
func poll(ctx context.Context, checker passChecker, cols []config.Col, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		checkCols(ctx, checker, cols, logger)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// checkCols refreshes all cols concurrently and returns the reports that
// succeeded, keyed by col id
func checkCols(ctx context.Context, checker passChecker, cols []config.Col, logger *slog.Logger) map[string]*models.MountainPassReport {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		reports = make(map[string]*models.MountainPassReport, len(cols))
	)

	for _, col := range cols {
		wg.Add(1)
		go func(col config.Col) {
			defer wg.Done()

			report, err := checker.CheckMountainPassWindConditions(ctx, col.ID, col.Location())
			if err != nil {
				logger.Error("failed to check col", "col", col.ID, "error", err)
				return
			}

			logger.Info("col checked", "col", col.ID, "speed", report.WindData.Speed,
				"gust", report.WindData.Gust, "level", report.WarningLevel)

			mu.Lock()
			reports[col.ID] = report
			mu.Unlock()
		}(col)
	}

	wg.Wait()
	return reports
}

func configPath() string {
	if p := os.Getenv("VELOWIND_CONFIG"); p != "" {
		return p
	}
	return "./config.yaml"
}
