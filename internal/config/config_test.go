package config

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func resetSingleton() {
	instance = nil
	once = sync.Once{}
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"WINDY_API_KEY", "WINDY_BASE_URL", "WIND_UNITS",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_STREAM",
		"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "DATABASE_DSN", "SERVER_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `api:
  key: "file-key"
  model: "iconEu"
cache_duration: 600
alert_thresholds:
  warning: 25
  danger: 40
units: imperial
redis:
  addr: "redis:6379"
  stream: "alerts"
cols:
  - id: ventoux
    name: "Mont Ventoux"
    latitude: 44.1741
    longitude: 5.2788
  - id: madeleine
    name: "Col de la Madeleine"
    latitude: 45.4333
    longitude: 6.3833
`)

	resetSingleton()
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "file-key", cfg.API.Key)
	assert.Equal(t, "iconEu", cfg.API.Model)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 25.0, cfg.AlertThresholds.Warning)
	assert.Equal(t, 40.0, cfg.AlertThresholds.Danger)
	assert.Equal(t, "imperial", cfg.Units)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "alerts", cfg.Redis.Stream)
	require.Len(t, cfg.Cols, 2)

	col, ok := cfg.FindCol("madeleine")
	require.True(t, ok)
	assert.Equal(t, "Col de la Madeleine", col.Location().Name)

	// defaults survive a partial file
	assert.Equal(t, 500, cfg.Debounce)
	assert.Equal(t, 15*time.Minute, cfg.RefreshEvery())
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	resetSingleton()

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1800, cfg.CacheDuration)
	assert.Equal(t, 30.0, cfg.AlertThresholds.Warning)
	assert.Equal(t, 45.0, cfg.AlertThresholds.Danger)
	assert.Equal(t, "metric", cfg.Units)
	assert.Equal(t, "wind_warnings", cfg.Redis.Stream)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WINDY_API_KEY", "env-key")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DATABASE_DSN", "u:p@tcp(db:3306)/wind?parseTime=true")

	path := writeTempConfig(t, "api:\n  key: file-key\n")
	cfg, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.API.Key)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "u:p@tcp(db:3306)/wind?parseTime=true", cfg.Database.DSN)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "invalid: [yaml: content")

	resetSingleton()
	_, err := Load(path)
	if err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	resetSingleton()

	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestGet_Panic(t *testing.T) {
	resetSingleton()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected Get() to panic when config not loaded")
		}
	}()

	Get()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero cache duration", func(c *Config) { c.CacheDuration = 0 }, true},
		{"danger below warning", func(c *Config) { c.AlertThresholds.Danger = 20 }, true},
		{"zero warning", func(c *Config) { c.AlertThresholds.Warning = 0 }, true},
		{"unknown units", func(c *Config) { c.Units = "knots" }, true},
		{"zero refresh", func(c *Config) { c.RefreshInterval = 0 }, true},
		{"col without id", func(c *Config) { c.Cols = []Col{{Name: "x"}} }, true},
		{"duplicate col", func(c *Config) { c.Cols = []Col{{ID: "a"}, {ID: "a"}} }, true},
		{"col bad latitude", func(c *Config) { c.Cols = []Col{{ID: "a", Latitude: 91}} }, true},
		{"valid col", func(c *Config) { c.Cols = []Col{{ID: "a", Latitude: 45, Longitude: 6}} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetDatabaseDSN(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, "fallback", GetDatabaseDSN("fallback"))

	t.Setenv("DATABASE_DSN", "custom:dsn@tcp(custom:3306)/customdb?parseTime=true")
	assert.Equal(t, "custom:dsn@tcp(custom:3306)/customdb?parseTime=true", GetDatabaseDSN("fallback"))

	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_PASSWORD", "testpass")
	assert.Equal(t, "custom:dsn@tcp(custom:3306)/customdb?parseTime=true", GetDatabaseDSN("fallback"), "partial DB_* vars are ignored")

	t.Setenv("DB_HOST", "testhost")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_NAME", "testdb")
	assert.Equal(t, "testuser:testpass@tcp(testhost:3307)/testdb?parseTime=true", GetDatabaseDSN("fallback"))
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "env var set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "env var not set",
			key:          "TEST_KEY_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}
