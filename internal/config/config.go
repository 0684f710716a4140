// Package config provides configuration management for the URL indexer service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Indexing IndexingConfig
	Quota    QuotaConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// IndexingConfig holds the pipeline tunables.
type IndexingConfig struct {
	BatchSize       int           // URLs processed concurrently per batch
	CacheTTL        time.Duration // staleness bound for rechecking indexable statuses
	ExistenceTTL    time.Duration // staleness bound for plain cache-existence lookups
	FlushInterval   time.Duration // SSE queue flush cadence
	MaxRetries      int           // run-level retries after unexpected failure
	RetryDelay      time.Duration // base delay before the first run retry
	BackoffFactor   float64       // run retry delay multiplier
	ProviderRPS     float64       // outbound requests/sec against the provider
	RequestTimeout  time.Duration // per provider HTTP call
}

// QuotaConfig holds publish-quota configuration mirroring the Indexing API
// published limits.
type QuotaConfig struct {
	DailyPublishLimit int
	RPMRetries        int
	RPMWaitWindow     time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestsPerSec:  getEnvAsInt("SERVER_REQUESTS_PER_SEC", 20),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "url_indexer"),
				User:           getEnv("POSTGRES_USER", "indexer"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "url_indexer"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Indexing: IndexingConfig{
			BatchSize:      getEnvAsInt("INDEXING_BATCH_SIZE", 10),
			CacheTTL:       getEnvAsDuration("INDEXING_CACHE_TTL", 14*24*time.Hour),
			ExistenceTTL:   getEnvAsDuration("INDEXING_EXISTENCE_TTL", 24*time.Hour),
			FlushInterval:  getEnvAsDuration("INDEXING_FLUSH_INTERVAL", 100*time.Millisecond),
			MaxRetries:     getEnvAsInt("INDEXING_MAX_RETRIES", 3),
			RetryDelay:     getEnvAsDuration("INDEXING_RETRY_DELAY", time.Second),
			BackoffFactor:  getEnvAsFloat("INDEXING_BACKOFF_FACTOR", 1.5),
			ProviderRPS:    getEnvAsFloat("INDEXING_PROVIDER_RPS", 5),
			RequestTimeout: getEnvAsDuration("INDEXING_REQUEST_TIMEOUT", 30*time.Second),
		},
		Quota: QuotaConfig{
			DailyPublishLimit: getEnvAsInt("QUOTA_DAILY_PUBLISH_LIMIT", 200),
			RPMRetries:        getEnvAsInt("QUOTA_RPM_RETRIES", 3),
			RPMWaitWindow:     getEnvAsDuration("QUOTA_RPM_WAIT_WINDOW", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
