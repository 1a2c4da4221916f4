package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string // API bind address, e.g., "127.0.0.1:8080" or ":8080"
	LogDir      string // logs directory
	DatabaseURL string // postgres DSN; empty means use the in-memory store
	CatalogFile string // declarative networks/endpoints YAML

	CheckInterval  time.Duration // wall-clock interval between cycles
	BatchLimit     int           // max endpoints per cycle
	RequestTimeout time.Duration // per-probe timeout
	Concurrency    int           // probe worker ceiling

	StaleAfter  time.Duration // default block-time freshness threshold
	MaxBlockLag int64         // default acceptable height lag vs siblings

	PersistRetries int           // bounded retries for store writes
	PersistBackoff time.Duration // backoff between those retries
}

func FromEnv() Config {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	catalog := os.Getenv("CATALOG_FILE")
	if catalog == "" {
		catalog = "config/networks.yaml"
	}

	return Config{
		Addr:        addr,
		LogDir:      logDir,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		CatalogFile: catalog,

		CheckInterval:  secondsEnv("CHECK_INTERVAL_SECONDS", 300),
		BatchLimit:     intEnv("BATCH_LIMIT", 300),
		RequestTimeout: floatSecondsEnv("REQUEST_TIMEOUT", 5.0),
		Concurrency:    intEnv("CHECK_CONCURRENCY", 16),

		StaleAfter:  secondsEnv("STALE_AFTER_SECONDS", 30),
		MaxBlockLag: int64(intEnv("MAX_BLOCK_LAG", 10)),

		PersistRetries: intEnv("PERSIST_RETRIES", 2),
		PersistBackoff: msEnv("PERSIST_BACKOFF_MS", 300),
	}
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func secondsEnv(key string, def int) time.Duration {
	return time.Duration(intEnv(key, def)) * time.Second
}

func msEnv(key string, def int) time.Duration {
	return time.Duration(intEnv(key, def)) * time.Millisecond
}

// floatSecondsEnv allows fractional seconds, e.g. REQUEST_TIMEOUT=2.5
func floatSecondsEnv(key string, def float64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return time.Duration(def * float64(time.Second))
}
