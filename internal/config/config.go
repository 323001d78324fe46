package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string // JWKS endpoint of the authentication service
	CORSOrigins string
	TablePrefix string
	// Cache
	RedisURL      string // Empty disables the document cache
	CacheTTL      time.Duration
	TypeCacheSize int
	// Search sync
	SyncBatchSize   int
	SyncConcurrency int
	// Logging
	LogDir      string // Empty keeps logs on stdout only
	LogMaxFiles int
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWKSURL:         getEnv("JWKS_URL", ""),
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,
		RedisURL:        getEnv("REDIS_URL", ""),
		CacheTTL:        getDuration("CACHE_TTL", 10*time.Minute),
		TypeCacheSize:   getInt("TYPE_CACHE_SIZE", DefaultTypeCacheSize),
		SyncBatchSize:   getInt("SYNC_BATCH_SIZE", DefaultSyncBatchSize),
		SyncConcurrency: getInt("SYNC_CONCURRENCY", DefaultSyncConcurrency),
		LogDir:          getEnv("LOG_DIR", ""),
		LogMaxFiles:     getInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
