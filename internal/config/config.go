// Package config resolves pipeline settings from the environment with
// sensible defaults and fail-fast validation.
package config

import (
	"fmt"
	"os"

	"github.com/bull/legis-etl/internal/extract"
)

// Config holds all resolved settings for a pipeline run.
type Config struct {
	// Extraction scope.
	Category   string
	TimePeriod string
	BaseURL    string

	// Stores.
	QdrantHost string
	QdrantPort int
	SQLitePath string

	// Local state.
	CheckpointPath string
	CacheDir       string

	// Concurrency.
	ProcessWorkers int

	// Politeness.
	MinFetchIntervalMs int
}

// Load resolves configuration from environment variables. Call
// godotenv.Load first so a local .env file is honoured.
func Load() (*Config, error) {
	cfg := &Config{
		Category:           getEnv("LEGISLATION_CATEGORY", "planning"),
		TimePeriod:         getEnv("LEGISLATION_TIME_PERIOD", "August/2024"),
		BaseURL:            getEnv("LEGISLATION_BASE_URL", extract.DefaultBaseURL),
		QdrantHost:         getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:         getEnvInt("QDRANT_PORT", 6334),
		SQLitePath:         getEnv("SQLITE_PATH", "legislation.db"),
		CheckpointPath:     getEnv("CHECKPOINT_PATH", "checkpoint.json"),
		CacheDir:           getEnv("CACHE_DIR", ".cache"),
		ProcessWorkers:     getEnvInt("PROCESS_WORKERS", 4),
		MinFetchIntervalMs: getEnvInt("MIN_FETCH_INTERVAL_MS", 500),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Category == "" {
		return fmt.Errorf("category must not be empty")
	}
	if _, err := extract.ParseTimePeriod(c.TimePeriod); err != nil {
		return fmt.Errorf("time period %q: %v", c.TimePeriod, err)
	}
	if c.QdrantPort <= 0 || c.QdrantPort > 65535 {
		return fmt.Errorf("qdrant port %d out of range", c.QdrantPort)
	}
	if c.ProcessWorkers <= 0 {
		return fmt.Errorf("process workers must be positive, got %d", c.ProcessWorkers)
	}
	if c.MinFetchIntervalMs < 0 {
		return fmt.Errorf("min fetch interval must not be negative, got %d", c.MinFetchIntervalMs)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
