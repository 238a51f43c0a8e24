package wind

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"velowind/internal/cache"
	"velowind/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

// fakeFetcher serves canned upstream payloads and counts calls
type fakeFetcher struct {
	mu            sync.Mutex
	points        map[string]*models.PointResponse
	pointErr      map[string]error
	forecast      *models.ForecastResponse
	forecastErr   error
	pointCalls    map[string]int
	forecastCalls int
	gate          chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		points:     make(map[string]*models.PointResponse),
		pointErr:   make(map[string]error),
		pointCalls: make(map[string]int),
	}
}

func (f *fakeFetcher) setPoint(level string, speedMs, gustMs, direction float64) {
	f.points[level] = &models.PointResponse{
		Wind:     []models.ParamValue{{Value: ptr(speedMs), Direction: ptr(direction)}},
		WindGust: []models.ParamValue{{Value: ptr(gustMs)}},
	}
}

func (f *fakeFetcher) GetPoint(ctx context.Context, _, _ float64, level string) (*models.PointResponse, error) {
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pointCalls[level]++
	if err := f.pointErr[level]; err != nil {
		return nil, err
	}
	return f.points[level], nil
}

func (f *fakeFetcher) GetForecast(_ context.Context, _, _ float64, hours int) (*models.ForecastResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecastCalls++
	if f.forecastErr != nil {
		return nil, f.forecastErr
	}
	return f.forecast, nil
}

func (f *fakeFetcher) calls(level string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pointCalls[level]
}

// recordingSink captures monitoring calls
type recordingSink struct {
	mu      sync.Mutex
	events  []string
	metrics map[string]int
	errors  []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{metrics: make(map[string]int)}
}

func (r *recordingSink) TrackEvent(name string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recordingSink) TrackMetric(name string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[name]++
}

func (r *recordingSink) TrackError(name string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, name)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("redis unavailable")
}

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("redis unavailable")
}

var ventoux = models.GeoLocation{Lat: 44.1741, Lon: 5.2788, Name: "Mont Ventoux"}

func newTestService(t *testing.T, fetcher Fetcher, store cache.Store, opts Options) (*Service, *recordingSink, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	sink := newRecordingSink()
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewService(fetcher, store, sink, opts, logger)
	s.now = func() time.Time { return time.UnixMilli(1_720_944_000_000) }
	return s, sink, buf
}

func TestGetDetailedWindData(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 5, 8.5, 370)
	s, sink, _ := newTestService(t, fetcher, cache.NewMemoryStore(), DefaultOptions())

	got, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)

	assert.Equal(t, 18.0, got.Speed)
	assert.Equal(t, 30.6, got.Gust)
	assert.Equal(t, 10.0, got.Direction)
	assert.Equal(t, int64(1_720_944_000_000), got.Timestamp)
	assert.Equal(t, "windy", got.Provider)
	assert.Equal(t, 1, sink.metrics["wind_api_latency_ms"])
}

func TestGetDetailedWindData_CachedWithinTTL(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 5, 8, 90)
	s, sink, _ := newTestService(t, fetcher, cache.NewMemoryStore(), DefaultOptions())

	first, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)
	second, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls("surface"))
	assert.Equal(t, first, second)
	assert.Contains(t, sink.events, "wind_cache_hit")
}

func TestGetDetailedWindData_CacheKeyRoundsCoordinates(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 5, 8, 90)
	s, _, _ := newTestService(t, fetcher, cache.NewMemoryStore(), DefaultOptions())

	_, err := s.GetDetailedWindData(context.Background(), models.GeoLocation{Lat: 44.1741, Lon: 5.2788})
	require.NoError(t, err)
	_, err = s.GetDetailedWindData(context.Background(), models.GeoLocation{Lat: 44.1712, Lon: 5.2811})
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls("surface"))
}

func TestGetDetailedWindData_CacheFailureIsAMiss(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 5, 8, 90)
	s, sink, logs := newTestService(t, fetcher, failingStore{}, DefaultOptions())

	got, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)
	assert.Equal(t, 18.0, got.Speed)
	assert.Contains(t, sink.errors, "wind_cache_read_error")
	assert.Contains(t, sink.errors, "wind_cache_write_error")
	assert.Contains(t, logs.String(), "treating as miss")
}

func TestGetDetailedWindData_FetchError(t *testing.T) {
	fetcher := newFakeFetcher()
	upstream := errors.New("connection refused")
	fetcher.pointErr["surface"] = upstream
	s, sink, logs := newTestService(t, fetcher, cache.NewMemoryStore(), DefaultOptions())

	got, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, upstream)
	assert.True(t, strings.HasPrefix(err.Error(), "GetDetailedWindData:"))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, []string{"wind_data_fetch_error"}, sink.errors)
	assert.Contains(t, logs.String(), "failed to fetch wind data")
}

func TestGetDetailedWindData_EmptyPayloadDefaultsToZero(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.points["surface"] = &models.PointResponse{Wind: []models.ParamValue{{}}}
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	got, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)
	assert.Zero(t, got.Speed)
	assert.Zero(t, got.Gust)
	assert.Zero(t, got.Direction)
}

func TestGetDetailedWindData_Imperial(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 10, 20, 0)
	opts := DefaultOptions()
	opts.Units = "imperial"
	s, _, _ := newTestService(t, fetcher, cache.NewMemoryStore(), opts)

	got, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)
	assert.Equal(t, 22.4, got.Speed)
	assert.Equal(t, 44.7, got.Gust)
}

func TestGetDetailedWindData_SingleFlight(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 5, 8, 90)
	fetcher.gate = make(chan struct{})
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GetDetailedWindData(context.Background(), ventoux)
			assert.NoError(t, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	assert.Equal(t, 1, fetcher.calls("surface"))
}

func TestGetDetailedWindData_CanceledCallerDoesNotFailJoinedCallers(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 5, 8, 90)
	fetcher.gate = make(chan struct{})
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.GetDetailedWindData(firstCtx, ventoux)
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	type result struct {
		data *models.WindData
		err  error
	}
	second := make(chan result, 1)
	go func() {
		data, err := s.GetDetailedWindData(context.Background(), ventoux)
		second <- result{data, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(fetcher.gate)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 18.0, res.data.Speed)
	assert.Equal(t, 1, fetcher.calls("surface"))
}

func TestGetDetailedWindData_AlertsOnFreshDataOnly(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 14, 16, 270) // 50.4 km/h
	s, _, _ := newTestService(t, fetcher, cache.NewMemoryStore(), DefaultOptions())

	var received []models.WindWarning
	s.RegisterWarningCallback(func(_ context.Context, w models.WindWarning) error {
		received = append(received, w)
		return nil
	})

	_, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)
	_, err = s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, models.WarningLevelDanger, received[0].Level)
	assert.Equal(t, ventoux, received[0].Location)
	assert.Equal(t, received[0].Timestamp+3_600_000, received[0].ExpiresAt)
}

func TestRegisterWarningCallback_SubscriberIsolation(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 10, 12, 0) // 36 km/h
	s, _, logs := newTestService(t, fetcher, nil, DefaultOptions())

	s.RegisterWarningCallback(func(context.Context, models.WindWarning) error {
		panic("subscriber exploded")
	})
	var second *models.WindWarning
	s.RegisterWarningCallback(func(_ context.Context, w models.WindWarning) error {
		second = &w
		return nil
	})

	_, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, models.WarningLevelWarning, second.Level)
	assert.Contains(t, logs.String(), "subscriber exploded")
}

func TestRegisterWarningCallback_Unregister(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 14, 16, 0)
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	calls := 0
	unregister := s.RegisterWarningCallback(func(context.Context, models.WindWarning) error {
		calls++
		return nil
	})
	unregister()

	_, err := s.GetDetailedWindData(context.Background(), ventoux)
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestNewService_Defaults(t *testing.T) {
	s := NewService(newFakeFetcher(), nil, nil, Options{}, nil)
	assert.Equal(t, DefaultOptions(), s.Options())
}
