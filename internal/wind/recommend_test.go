package wind

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"velowind/internal/cache"
	"velowind/internal/models"
	"velowind/internal/safety"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var madeleine = models.GeoLocation{Lat: 45.4333, Lon: 6.3833, Name: "Col de la Madeleine"}

func TestGetWindSafetyRecommendation(t *testing.T) {
	tests := []struct {
		name      string
		speedMs   float64
		gustMs    float64
		wantLevel models.WarningLevel
		wantSafe  bool
	}{
		{"calm", 2, 3, models.WarningLevelInfo, true},
		{"caution maps to info", 6.5, 7, models.WarningLevelInfo, true},
		{"warning", 9, 10, models.WarningLevelWarning, true},
		{"danger", 13, 15, models.WarningLevelDanger, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher()
			fetcher.setPoint("surface", tt.speedMs, tt.gustMs, 180)
			s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

			got, err := s.GetWindSafetyRecommendation(context.Background(), ventoux, "", "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, got.WarningLevel)
			assert.Equal(t, tt.wantSafe, got.SafeToRide)
			assert.Contains(t, got.Recommendation, "Vent de Sud (180°)")
		})
	}
}

func TestGetWindSafetyRecommendation_ExperienceAndTerrain(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 7, 8, 0) // 25.2 km/h
	s, _, _ := newTestService(t, fetcher, cache.NewMemoryStore(), DefaultOptions())

	got, err := s.GetWindSafetyRecommendation(context.Background(), ventoux, safety.ExperienceAdvanced, safety.TerrainFlat)
	require.NoError(t, err)
	assert.Equal(t, models.SafetyLevelSafe, got.SafetyLevel)

	got, err = s.GetWindSafetyRecommendation(context.Background(), ventoux, safety.ExperienceBeginner, safety.TerrainFlat)
	require.NoError(t, err)
	assert.Equal(t, models.SafetyLevelWarning, got.SafetyLevel)

	got, err = s.GetWindSafetyRecommendation(context.Background(), ventoux, safety.ExperienceAdvanced, safety.TerrainMountainDescent)
	require.NoError(t, err)
	assert.Equal(t, models.SafetyLevelWarning, got.SafetyLevel)
	assert.Contains(t, got.Recommendation, "descentes")
}

func TestGetWindSafetyRecommendation_Error(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pointErr["surface"] = errors.New("boom")
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	_, err := s.GetWindSafetyRecommendation(context.Background(), ventoux, "", "")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "GetWindSafetyRecommendation:"))
}

func TestCheckMountainPassWindConditions_EscalatesAt25(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 7, 8, 0) // 25.2 km/h, caution on a col
	fetcher.setPoint("850h", 7.5, 9, 0)  // 27 km/h, not 30% stronger
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	got, err := s.CheckMountainPassWindConditions(context.Background(), "madeleine", madeleine)
	require.NoError(t, err)

	assert.Equal(t, "madeleine", got.ColID)
	assert.Equal(t, models.SafetyLevelCaution, got.SafetyLevel)
	assert.Equal(t, models.WarningLevelWarning, got.WarningLevel)
	require.NotNil(t, got.AltitudeSpeed)
	assert.InDelta(t, 27.0, *got.AltitudeSpeed, 0.001)
	assert.NotContains(t, got.Recommendation, "altitude")
}

func TestCheckMountainPassWindConditions_AltitudeExcess(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 4, 5, 90) // 14.4 km/h
	fetcher.setPoint("850h", 6, 8, 90)    // 21.6 km/h, +50%
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	got, err := s.CheckMountainPassWindConditions(context.Background(), "ventoux", ventoux)
	require.NoError(t, err)

	assert.Equal(t, models.WarningLevelWarning, got.WarningLevel)
	assert.True(t, got.SafeToRide)
	assert.Contains(t, got.Recommendation, "plus fort en altitude (22 km/h)")
}

func TestCheckMountainPassWindConditions_CalmStaysInfo(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 3, 4, 90)
	fetcher.setPoint("850h", 3.5, 4, 90)
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	got, err := s.CheckMountainPassWindConditions(context.Background(), "ventoux", ventoux)
	require.NoError(t, err)
	assert.Equal(t, models.WarningLevelInfo, got.WarningLevel)
}

func TestCheckMountainPassWindConditions_AltitudeProbeFailureSwallowed(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 3, 4, 90)
	fetcher.pointErr["850h"] = errors.New("level not available")
	s, sink, logs := newTestService(t, fetcher, nil, DefaultOptions())

	got, err := s.CheckMountainPassWindConditions(context.Background(), "ventoux", ventoux)
	require.NoError(t, err)
	assert.Nil(t, got.AltitudeSpeed)
	assert.Equal(t, models.WarningLevelInfo, got.WarningLevel)
	assert.Contains(t, logs.String(), "altitude wind probe failed")
	assert.Contains(t, sink.errors, "wind_data_fetch_error")
}

func TestCheckMountainPassWindConditions_DangerNotSafe(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 12, 14, 270) // 43.2 km/h >= col danger 40
	fetcher.setPoint("850h", 12, 14, 270)
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	got, err := s.CheckMountainPassWindConditions(context.Background(), "madeleine", madeleine)
	require.NoError(t, err)
	assert.Equal(t, models.WarningLevelDanger, got.WarningLevel)
	assert.False(t, got.SafeToRide)
}

func TestCheckMountainPassWindConditions_AlertCarriesColID(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 12, 14, 270)
	fetcher.setPoint("850h", 12, 14, 270)
	s, _, _ := newTestService(t, fetcher, nil, DefaultOptions())

	var warning models.WindWarning
	s.RegisterWarningCallback(func(_ context.Context, w models.WindWarning) error {
		warning = w
		return nil
	})

	_, err := s.CheckMountainPassWindConditions(context.Background(), "madeleine", madeleine)
	require.NoError(t, err)
	assert.Equal(t, "madeleine", warning.ColID)
	assert.Equal(t, models.WarningLevelWarning, warning.Level)
}

// prefixStore namespaces keys over a shared backend like cache.RedisStore does
type prefixStore struct {
	backend cache.Store
	prefix  string
}

func (p prefixStore) Get(ctx context.Context, key string) (string, error) {
	return p.backend.Get(ctx, p.prefix+key)
}

func (p prefixStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return p.backend.Set(ctx, p.prefix+key, value, ttl)
}

func TestCheckMountainPassWindConditions_CollectorAlertsAfterServerFetch(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.setPoint("surface", 15, 17, 270) // 54 km/h
	fetcher.setPoint("850h", 15, 17, 270)
	shared := cache.NewMemoryStore()

	web, _, _ := newTestService(t, fetcher, shared, DefaultOptions())
	collector, _, _ := newTestService(t, fetcher, prefixStore{backend: shared, prefix: "collect:"}, DefaultOptions())

	var delivered []models.WindWarning
	collector.RegisterWarningCallback(func(_ context.Context, w models.WindWarning) error {
		delivered = append(delivered, w)
		return nil
	})

	_, err := web.GetDetailedWindData(context.Background(), madeleine)
	require.NoError(t, err)

	report, err := collector.CheckMountainPassWindConditions(context.Background(), "madeleine", madeleine)
	require.NoError(t, err)
	assert.Equal(t, models.SafetyLevelDanger, report.SafetyLevel)

	require.Len(t, delivered, 1)
	assert.Equal(t, models.WarningLevelDanger, delivered[0].Level)
	assert.Equal(t, "madeleine", delivered[0].ColID)
}
