package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

type Config struct {
	AppURL                 string
	DatabaseDSN            string
	RedisAddr              string
	CacheTTLSeconds        int
	SyncStreamKey          string
	SyncDLQKey             string
	SyncGroup              string
	SyncConsumer           string
	SyncMaxRetries         int
	SyncBatchSize          int
	SyncBlockMillis        int
	SyncStreamMaxLen       int
	DLQMaxLen              int
	MaintenanceSpec        string
	RateLimit              int
	ShutdownTimeoutSeconds int
}

func Load() Config {
	appHost := getEnv("APP_HOST", "127.0.0.1")
	appPort := getEnv("APP_PORT", "8080")
	redisHost := getEnv("REDIS_HOST", "127.0.0.1")
	redisPort := getEnv("REDIS_PORT", "6379")

	cfg := Config{
		AppURL:                 fmt.Sprintf("%s:%s", appHost, appPort),
		DatabaseDSN:            getEnv("DATABASE_DSN", "tasks.db"),
		RedisAddr:              fmt.Sprintf("%s:%s", redisHost, redisPort),
		CacheTTLSeconds:        getEnvAsInt("TASK_CACHE_TTL_SECONDS", 86400),
		SyncStreamKey:          getEnv("SYNC_STREAM_KEY", "stream:tasks:sync"),
		SyncDLQKey:             getEnv("SYNC_DLQ_KEY", "stream:tasks:dlq"),
		SyncGroup:              getEnv("SYNC_CONSUMER_GROUP", "sync-workers"),
		SyncConsumer:           getEnv("SYNC_CONSUMER_NAME", "worker-1"),
		SyncMaxRetries:         getEnvAsInt("SYNC_MAX_RETRIES", 5),
		SyncBatchSize:          getEnvAsInt("SYNC_BATCH_SIZE", 50),
		SyncBlockMillis:        getEnvAsInt("SYNC_BLOCK_MS", 200),
		SyncStreamMaxLen:       getEnvAsInt("SYNC_STREAM_MAXLEN", 10000),
		DLQMaxLen:              getEnvAsInt("SYNC_DLQ_MAXLEN", 5000),
		MaintenanceSpec:        getEnv("MAINTENANCE_CRON_SPEC", "@every 5m"),
		RateLimit:              getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeoutSeconds: getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 20),
	}

	validate(cfg)
	return cfg
}

func validate(cfg Config) {
	if cfg.AppURL == "" {
		log.Fatal("APP_URL must not be empty (e.g. 127.0.0.1:8080)")
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN must not be empty")
	}
	if cfg.CacheTTLSeconds <= 0 {
		log.Fatal("TASK_CACHE_TTL_SECONDS must be greater than 0")
	}
	if cfg.SyncMaxRetries <= 0 {
		log.Fatal("SYNC_MAX_RETRIES must be greater than 0")
	}
	if cfg.SyncBatchSize <= 0 {
		log.Fatal("SYNC_BATCH_SIZE must be greater than 0")
	}
	if cfg.SyncBlockMillis <= 0 {
		log.Fatal("SYNC_BLOCK_MS must be greater than 0")
	}
	if cfg.RateLimit <= 0 {
		log.Fatal("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid integer value for %s", key)
		}
		return i
	}
	return defaultVal
}
