package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sizzle/internal/ledger"
)

type APIConfig struct {
	Addr                 string
	DatabaseURL          string
	CatalogPath          string
	OfflineCap           time.Duration
	SweepEvery           time.Duration
	StarterBalanceMicros int64
	BaseRatePerHour      int64
	BaseGuestsPerHour    int64
	MaxAttempts          int
	RetryBackoff         time.Duration
	LeaderboardCacheTTL  time.Duration
}

type CLIConfig struct {
	APIBaseURL string
	PlayerID   string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("SIZZLE_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:                 addr,
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CatalogPath:          strings.TrimSpace(os.Getenv("SIZZLE_CATALOG_PATH")),
		OfflineCap:           envDurationDefault("SIZZLE_OFFLINE_CAP", 24*time.Hour),
		SweepEvery:           envDurationDefault("SIZZLE_SWEEP_EVERY", 5*time.Minute),
		StarterBalanceMicros: ledger.BucksToMicros(envFloatDefault("SIZZLE_STARTER_BALANCE", 0)),
		BaseRatePerHour:      ledger.BucksToMicros(envFloatDefault("SIZZLE_BASE_RATE_PER_HOUR", 10)),
		BaseGuestsPerHour:    envInt64Default("SIZZLE_BASE_GUESTS_PER_HOUR", 2),
		MaxAttempts:          int(envInt64Default("SIZZLE_MAX_RETRIES", 5)),
		RetryBackoff:         envDurationDefault("SIZZLE_RETRY_BACKOFF", 25*time.Millisecond),
		LeaderboardCacheTTL:  envDurationDefault("SIZZLE_LEADERBOARD_CACHE_TTL", 3*time.Second),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OfflineCap <= 0 {
		return cfg, fmt.Errorf("SIZZLE_OFFLINE_CAP must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("SZL_API_BASE_URL", "http://localhost:8080"), "/"),
		PlayerID:   strings.TrimSpace(os.Getenv("SZL_PLAYER_ID")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
