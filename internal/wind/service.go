// Package wind fetches, caches and assesses wind conditions for cyclists.
//
// A Service reads through a short-TTL cache before calling the upstream
// weather API, converts upstream m/s values to km/h and dispatches alerts
// to registered callbacks whenever fresh surface data crosses the global
// alert thresholds. Values are cached in km/h and converted to the
// configured unit system on the way out.
package wind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"velowind/internal/alerts"
	"velowind/internal/api"
	"velowind/internal/cache"
	"velowind/internal/config"
	"velowind/internal/forecast"
	"velowind/internal/metrics"
	"velowind/internal/models"
	"velowind/internal/safety"

	"golang.org/x/sync/singleflight"
)

const (
	// Provider is stamped on every observation
	Provider = "windy"

	MinForecastDays = 1
	MaxForecastDays = 10
)

// Fetcher is the upstream weather API
type Fetcher interface {
	GetPoint(ctx context.Context, lat, lon float64, level string) (*models.PointResponse, error)
	GetForecast(ctx context.Context, lat, lon float64, hours int) (*models.ForecastResponse, error)
}

// Options are the runtime settings of a Service
type Options struct {
	CacheDuration   time.Duration
	AlertThresholds models.Thresholds
	// Debounce is reserved; no call path uses it yet.
	Debounce time.Duration
	// RefreshInterval is advisory for polling hosts.
	RefreshInterval time.Duration
	Units           string
}

// DefaultOptions returns the documented defaults
func DefaultOptions() Options {
	return Options{
		CacheDuration:   1800 * time.Second,
		AlertThresholds: models.Thresholds{Warning: 30, Danger: 45},
		Debounce:        500 * time.Millisecond,
		RefreshInterval: 900000 * time.Millisecond,
		Units:           "metric",
	}
}

// OptionsFromConfig maps a loaded configuration onto Options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CacheDuration:   cfg.CacheTTL(),
		AlertThresholds: cfg.AlertThresholds,
		Debounce:        time.Duration(cfg.Debounce) * time.Millisecond,
		RefreshInterval: cfg.RefreshEvery(),
		Units:           cfg.Units,
	}
}

// Service is the wind data provider, cache layer and alert source. The cache
// and sink are shared with the caller and never closed by the Service.
type Service struct {
	fetcher Fetcher
	cache   cache.Store
	sink    metrics.Sink
	alerts  *alerts.Manager
	opts    Options
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewService creates a new wind service. A nil store disables caching and a
// nil sink discards metrics.
func NewService(fetcher Fetcher, store cache.Store, sink metrics.Sink, opts Options, logger *slog.Logger) *Service {
	defaults := DefaultOptions()
	if opts.CacheDuration <= 0 {
		opts.CacheDuration = defaults.CacheDuration
	}
	if opts.AlertThresholds.Warning <= 0 || opts.AlertThresholds.Danger <= 0 {
		opts.AlertThresholds = defaults.AlertThresholds
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaults.RefreshInterval
	}
	if opts.Units == "" {
		opts.Units = defaults.Units
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		fetcher: fetcher,
		cache:   store,
		sink:    sink,
		alerts:  alerts.NewManager(opts.AlertThresholds, logger),
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Options returns the effective options
func (s *Service) Options() Options {
	return s.opts
}

// RegisterWarningCallback subscribes cb to alerts and returns its disposer
func (s *Service) RegisterWarningCallback(cb alerts.Callback) func() {
	return s.alerts.Register(cb)
}

// GetDetailedWindData returns the current surface wind at location
func (s *Service) GetDetailedWindData(ctx context.Context, location models.GeoLocation) (*models.WindData, error) {
	data, err := s.surfaceWind(ctx, location, "")
	if err != nil {
		return nil, fmt.Errorf("GetDetailedWindData: %w", err)
	}
	out := s.windInUnits(data)
	return &out, nil
}

// GetWindForecast returns current conditions plus hourly and daily forecasts
// for days (clamped to [1,10]) days
func (s *Service) GetWindForecast(ctx context.Context, location models.GeoLocation, days int) (*models.WindForecast, error) {
	days = clampDays(days)
	key := forecastKey(location, days)

	var fc models.WindForecast
	if s.readCache(ctx, key, &fc) {
		out := s.forecastInUnits(fc)
		return &out, nil
	}

	v, err := s.share(ctx, key, func(ctx context.Context) (interface{}, error) {
		current, err := s.surfaceWind(ctx, location, "")
		if err != nil {
			return nil, err
		}

		start := s.now()
		raw, err := s.fetcher.GetForecast(ctx, location.Lat, location.Lon, days*24)
		s.sink.TrackMetric("wind_forecast_latency_ms", msSince(start, s.now()))
		if err != nil {
			s.logger.Error("failed to fetch wind forecast", "lat", location.Lat, "lon", location.Lon, "days", days, "error", err)
			s.sink.TrackError("wind_forecast_fetch_error", err)
			return nil, err
		}

		hourly := forecast.ProcessHourlyForecast(*raw)
		result := models.WindForecast{
			Location:   location,
			Current:    current,
			Hourly:     hourly,
			Daily:      forecast.AggregateDailyForecast(hourly),
			UpdateTime: s.now().UnixMilli(),
			Source:     Provider,
		}

		s.writeCache(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, fmt.Errorf("GetWindForecast: %w", err)
	}

	out := s.forecastInUnits(v.(models.WindForecast))
	return &out, nil
}

// surfaceWind returns km/h surface wind, fetching and alerting on a miss
func (s *Service) surfaceWind(ctx context.Context, location models.GeoLocation, colID string) (models.WindData, error) {
	return s.pointWind(ctx, location, api.SurfaceLevel, func(ctx context.Context, data models.WindData) {
		s.alerts.Check(ctx, data, location, colID)
	})
}

// altitudeWind returns km/h wind at the representative pass altitude
func (s *Service) altitudeWind(ctx context.Context, location models.GeoLocation) (models.WindData, error) {
	return s.pointWind(ctx, location, api.AltitudeLevel, nil)
}

func (s *Service) pointWind(ctx context.Context, location models.GeoLocation, level string, onFresh func(context.Context, models.WindData)) (models.WindData, error) {
	key := pointKey(location, level)

	var data models.WindData
	if s.readCache(ctx, key, &data) {
		return data, nil
	}

	v, err := s.share(ctx, key, func(ctx context.Context) (interface{}, error) {
		start := s.now()
		resp, err := s.fetcher.GetPoint(ctx, location.Lat, location.Lon, level)
		s.sink.TrackMetric("wind_api_latency_ms", msSince(start, s.now()))
		if err != nil {
			s.logger.Error("failed to fetch wind data", "lat", location.Lat, "lon", location.Lon, "level", level, "error", err)
			s.sink.TrackError("wind_data_fetch_error", err)
			return nil, err
		}

		fresh := s.toWindData(resp)
		if onFresh != nil {
			onFresh(ctx, fresh)
		}

		s.writeCache(ctx, key, fresh)
		return fresh, nil
	})
	if err != nil {
		return models.WindData{}, err
	}
	return v.(models.WindData), nil
}

// share runs fn once per key across concurrent callers. fn gets a context
// detached from the first caller's cancellation, bounded by the HTTP client
// timeout, and each caller stops waiting when its own ctx is done.
func (s *Service) share(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *Service) toWindData(resp *models.PointResponse) models.WindData {
	var wind, gust models.ParamValue
	if resp != nil {
		if len(resp.Wind) > 0 {
			wind = resp.Wind[0]
		}
		if len(resp.WindGust) > 0 {
			gust = resp.WindGust[0]
		}
	}

	return models.WindData{
		Speed:     math.Max(0, safety.MsToKmh(valueOrZero(wind.Value))),
		Direction: safety.NormalizeDirection(valueOrZero(wind.Direction)),
		Gust:      math.Max(0, safety.MsToKmh(valueOrZero(gust.Value))),
		Timestamp: s.now().UnixMilli(),
		Provider:  Provider,
	}
}

// readCache decodes key into out. Any cache failure counts as a miss.
func (s *Service) readCache(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
			s.sink.TrackError("wind_cache_read_error", err)
		}
		s.sink.TrackEvent("wind_cache_miss", map[string]interface{}{"key": key})
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("cached value is corrupt, treating as miss", "key", key, "error", err)
		return false
	}

	s.logger.Debug("cache hit", "key", key)
	s.sink.TrackEvent("wind_cache_hit", map[string]interface{}{"key": key})
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("failed to serialize cache value", "key", key, "error", err)
		return
	}

	if err := s.cache.Set(ctx, key, string(data), s.opts.CacheDuration); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
		s.sink.TrackError("wind_cache_write_error", err)
	}
}

func pointKey(location models.GeoLocation, level string) string {
	key := fmt.Sprintf("wind:point:%.2f:%.2f", location.Lat, location.Lon)
	if level != "" && level != api.SurfaceLevel {
		key += ":" + level
	}
	return key
}

func forecastKey(location models.GeoLocation, days int) string {
	return fmt.Sprintf("wind:forecast:%.2f:%.2f:%d", location.Lat, location.Lon, days)
}

func clampDays(days int) int {
	if days < MinForecastDays {
		return MinForecastDays
	}
	if days > MaxForecastDays {
		return MaxForecastDays
	}
	return days
}

func valueOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}

func msSince(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000
}
