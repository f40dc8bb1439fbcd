package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultAppName          = "reconcile"
	defaultLogLevel         = "info"
	defaultStoreBackend     = StoreBolt
	defaultStorePath        = "reconcile_tx.db"
	defaultDisputeCacheSize = 50_000
)

// Supported persistence backends.
const (
	StoreBolt     = "bolt"
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Locked-account dispute policies. Allow applies dispute-lifecycle records to
// locked accounts; Reject refuses them once the account is locked.
const (
	LockedDisputeAllow  = "allow"
	LockedDisputeReject = "reject"
)

// Config captures runtime configuration loaded from environment variables.
// The input path itself arrives as a positional argument, not here.
type Config struct {
	AppName             string
	LogLevel            string
	StoreBackend        string
	StorePath           string
	RedisURL            string
	DatabaseURL         string
	DisputeCacheSize    int
	LockedDisputePolicy string
}

// Load reads configuration values from the environment and validates them.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", defaultStoreBackend)),
		StorePath:           getEnv("STORE_PATH", defaultStorePath),
		RedisURL:            os.Getenv("REDIS_URL"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DisputeCacheSize:    defaultDisputeCacheSize,
		LockedDisputePolicy: strings.ToLower(getEnv("LOCKED_DISPUTE_POLICY", LockedDisputeAllow)),
	}

	if v := os.Getenv("DISPUTE_CACHE_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DISPUTE_CACHE_SIZE: %w", err)
		}
		if size <= 0 {
			return Config{}, fmt.Errorf("DISPUTE_CACHE_SIZE must be positive, got %d", size)
		}
		cfg.DisputeCacheSize = size
	}

	switch cfg.StoreBackend {
	case StoreBolt, StoreMemory:
	case StoreRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set for the redis store backend")
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set for the postgres store backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.LockedDisputePolicy {
	case LockedDisputeAllow, LockedDisputeReject:
	default:
		return Config{}, fmt.Errorf("unknown LOCKED_DISPUTE_POLICY %q", cfg.LockedDisputePolicy)
	}

	return cfg, nil
}

// RejectLockedDisputes reports whether dispute-lifecycle records against
// locked accounts should be refused.
func (c Config) RejectLockedDisputes() bool {
	return c.LockedDisputePolicy == LockedDisputeReject
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
