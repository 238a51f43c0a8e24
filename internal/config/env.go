package config

import (
	"fmt"
	"os"
	"strconv"
)

// applyEnv overrides file values with environment variables
func (c *Config) applyEnv() {
	c.API.Key = getEnv("WINDY_API_KEY", c.API.Key)
	c.API.BaseURL = getEnv("WINDY_BASE_URL", c.API.BaseURL)
	c.Units = getEnv("WIND_UNITS", c.Units)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.Stream = getEnv("REDIS_STREAM", c.Redis.Stream)
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = parsed
		}
	}

	c.Database.DSN = GetDatabaseDSN(c.Database.DSN)
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
}

// GetDatabaseDSN returns the MySQL DSN from DB_* variables, then DATABASE_DSN,
// then fallback
func GetDatabaseDSN(fallback string) string {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_NAME")

	if user != "" && password != "" && host != "" && port != "" && database != "" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, database)
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}

	return fallback
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
